// Command daextract parses a download-agent catalog blob and prints its
// entries and regions. It touches no device and needs no session.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/barnettlynn/flashkit/pkg/dacatalog"
)

func main() {
	path := flag.String("da", "", "path to the DA catalog blob")
	flag.Parse()

	if *path == "" {
		log.Fatal("-da is required")
	}

	blob, err := os.ReadFile(*path)
	if err != nil {
		log.Fatalf("read DA blob: %v", err)
	}

	catalog, err := dacatalog.Parse(blob)
	if err != nil {
		log.Fatalf("parse DA blob: %v", err)
	}

	os.Exit(run(catalog))
}

func run(catalog *dacatalog.Catalog) int {
	fmt.Printf("version: %s (v6=%v)\n", catalog.Version, catalog.IsV6)
	fmt.Printf("entries: %d\n\n", len(catalog.Entries))

	for i, e := range catalog.Entries {
		fmt.Printf("entry %d: hw_code=%#04x hw_sub_code=%#04x hw_version=%#04x sw_version=%#04x page_size=%d\n",
			i, e.HWCode, e.HWSubCode, e.HWVersion, e.SWVersion, e.PageSize)
		for j, r := range e.Regions {
			label := ""
			if j == 1 {
				label = " (stage-1)"
			} else if j == 2 {
				label = " (stage-2)"
			}
			fmt.Printf("  region %d%s: buffer_offset=%#x length=%d load_address=%#x start_offset=%#x signature_length=%d\n",
				j, label, r.BufferOffset, r.Length, r.LoadAddress, r.StartOffset, r.SignatureLength)
		}
		fmt.Println()
	}
	return 0
}
