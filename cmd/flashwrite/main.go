// Command flashwrite writes a local file into one partition on a device.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/barnettlynn/flashkit/internal/bringup"
	"github.com/barnettlynn/flashkit/internal/config"
	"github.com/barnettlynn/flashkit/internal/driverfactory"
	"github.com/barnettlynn/flashkit/pkg/dacatalog"
	"github.com/barnettlynn/flashkit/pkg/events"
	"github.com/barnettlynn/flashkit/pkg/session"
	"github.com/barnettlynn/flashkit/pkg/slakeys"
	"github.com/barnettlynn/flashkit/pkg/stage1"
)

const configFileName = "flashkit.yaml"

func main() {
	verbose := flag.Bool("v", false, "enable debug logging")
	logFormat := flag.String("log-format", "text", "log format: text or json")
	configFlag := flag.String("config", "", "path to config file (default: alongside the executable)")
	partition := flag.String("partition", "", "partition name to write")
	input := flag.String("input", "", "local file whose contents are written to the partition")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if *logFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
	}

	if *partition == "" || *input == "" {
		log.Fatal("-partition and -input are required")
	}

	configPath := *configFlag
	if configPath == "" {
		var err error
		configPath, err = defaultConfigPath()
		if err != nil {
			log.Fatalf("resolve config path failed: %v", err)
		}
	}
	fmt.Printf("Using config: %s\n", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	os.Exit(run(cfg, *partition, *input))
}

func run(cfg *config.Config, partition, input string) int {
	ctx := context.Background()

	f, err := os.Open(input)
	if err != nil {
		log.Printf("open input file: %v", err)
		return 2
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		log.Printf("stat input file: %v", err)
		return 2
	}
	length := info.Size()

	daBlob, err := os.ReadFile(cfg.DACatalog)
	if err != nil {
		log.Printf("read DA catalog: %v", err)
		return 2
	}
	catalog, err := dacatalog.Parse(daBlob)
	if err != nil {
		log.Printf("parse DA catalog: %v", err)
		return session.ExitCode(err)
	}

	kind, err := driverfactory.KindFromString(cfg.Stage2)
	if err != nil {
		log.Printf("%v", err)
		return 2
	}

	t, err := driverfactory.OpenTransport(cfg.Transport)
	if err != nil {
		log.Printf("open transport: %v", err)
		return 2
	}

	var keys []stage1.SLAKey
	if cfg.SLAKeyDir != "" {
		keys, err = slakeys.LoadDir(cfg.SLAKeyDir)
		if err != nil {
			log.Printf("load SLA keys: %v", err)
			return 2
		}
	}

	sink := events.NewSink(64)
	go logEvents(sink)

	s := session.New(session.Config{
		Transport:     t,
		Sink:          sink,
		Catalog:       catalog,
		SLAKeys:       keys,
		Timeouts:      cfg.Timeouts.Resolve(),
		Stage2Factory: driverfactory.Stage2Factory,
	})

	if err := bringup.Run(ctx, s, kind); err != nil {
		log.Printf("bring-up failed: %v", err)
		return session.ExitCode(err)
	}

	if err := s.WritePartition(ctx, partition, f, length); err != nil {
		log.Printf("write partition %q failed: %v", partition, err)
		_ = s.Close(ctx)
		return session.ExitCode(err)
	}

	fmt.Printf("Wrote %s (%d bytes) to partition %q\n", input, length, partition)
	return session.ExitCode(s.Close(ctx))
}

func defaultConfigPath() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", err
	}
	exeConfigPath := filepath.Join(filepath.Dir(exePath), configFileName)
	if fileExists(exeConfigPath) {
		return exeConfigPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return exeConfigPath, nil
	}
	cwdConfigPath := filepath.Join(cwd, configFileName)
	if fileExists(cwdConfigPath) {
		return cwdConfigPath, nil
	}
	return exeConfigPath, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func logEvents(sink *events.Sink) {
	for ev := range sink.Events() {
		fmt.Println(ev.Human())
	}
}
