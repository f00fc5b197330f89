// Command lockctl reads the seccfg partition off a device, changes its
// lock/critical-lock state, recomputes the hardware-encrypted trailing
// hash, and writes the result back.
//
// The SEJ/DXCC crypto engine is a stage-1 memory-mapped capability
// (spec.md §4.8): it must be built from the session's stage-1 driver
// before the DA upload/jump rebinds the device to its stage-2 protocol,
// since stage-1's Read32/Write32 commands are meaningless once the
// device has jumped into stage-2 firmware. lockctl therefore builds the
// crypto engine first and carries it across the jump, then uses the
// stage-2 driver (available only after bring-up finishes) to move the
// seccfg partition bytes. See DESIGN.md for why this ordering is a
// simplification rather than a strict guarantee of the real hardware.
package main

import (
	"bytes"
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
	"github.com/barnettlynn/flashkit/pkg/seccfg"
	"github.com/barnettlynn/flashkit/pkg/session"
	"github.com/barnettlynn/flashkit/pkg/slakeys"
	"github.com/barnettlynn/flashkit/pkg/stage1"
)

const configFileName = "flashkit.yaml"

func main() {
	verbose := flag.Bool("v", false, "enable debug logging")
	logFormat := flag.String("log-format", "text", "log format: text or json")
	configFlag := flag.String("config", "", "path to config file (default: alongside the executable)")
	lockFlag := flag.String("lock-state", "", "new lock state: default|mp-default|unlock|lock|verified|custom")
	criticalFlag := flag.String("critical-lock-state", "", "new critical lock state: lock|unlock")
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

	if *lockFlag == "" || *criticalFlag == "" {
		log.Fatal("-lock-state and -critical-lock-state are required")
	}
	lock, err := parseLockState(*lockFlag)
	if err != nil {
		log.Fatal(err)
	}
	critical, err := parseCriticalLockState(*criticalFlag)
	if err != nil {
		log.Fatal(err)
	}

	configPath := *configFlag
	if configPath == "" {
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
	if cfg.Seccfg.Engine == "" {
		log.Fatal("config.seccfg.engine is required for lockctl")
	}

	os.Exit(run(cfg, lock, critical))
}

func run(cfg *config.Config, lock seccfg.LockState, critical seccfg.CriticalLockState) int {
	ctx := context.Background()

	dataReg, ctrlReg, statusReg, err := cfg.Seccfg.Resolve()
	if err != nil {
		log.Printf("%v", err)
		return 2
	}

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

	if err := s.Handshake(ctx); err != nil {
		log.Printf("handshake: %v", err)
		return session.ExitCode(err)
	}
	if _, err := s.ProbeIdentity(ctx); err != nil {
		log.Printf("probe identity: %v", err)
		return session.ExitCode(err)
	}
	if _, err := s.SelectDA(ctx); err != nil {
		log.Printf("select da: %v", err)
		return session.ExitCode(err)
	}

	engine, err := buildEngine(cfg.Seccfg.Engine, s.Stage1(), seccfg.Registers{
		Data:    dataReg,
		Control: ctrlReg,
		Status:  statusReg,
	})
	if err != nil {
		log.Printf("%v", err)
		return 2
	}

	if err := s.UploadAndJump(ctx, kind, bringup.Use64BitJumpDA); err != nil {
		log.Printf("upload/jump da: %v", err)
		return session.ExitCode(err)
	}
	if _, err := s.LoadStorageInfo(ctx); err != nil {
		log.Printf("load storage info: %v", err)
		return session.ExitCode(err)
	}
	if _, err := s.LoadPartitions(ctx); err != nil {
		log.Printf("load partitions: %v", err)
		return session.ExitCode(err)
	}

	partition := cfg.Seccfg.PartitionName()

	var buf bytes.Buffer
	if err := s.ReadPartition(ctx, partition, &buf); err != nil {
		log.Printf("read seccfg partition: %v", err)
		_ = s.Close(ctx)
		return session.ExitCode(err)
	}

	sc, err := seccfg.Parse(buf.Bytes())
	if err != nil {
		log.Printf("parse seccfg: %v", err)
		_ = s.Close(ctx)
		return session.ExitCode(err)
	}

	if err := sc.Mutate(lock, critical, engine); err != nil {
		log.Printf("mutate seccfg: %v", err)
		_ = s.Close(ctx)
		return session.ExitCode(err)
	}

	out := sc.Serialize()
	if err := s.WritePartition(ctx, partition, bytes.NewReader(out), int64(len(out))); err != nil {
		log.Printf("write seccfg partition: %v", err)
		_ = s.Close(ctx)
		return session.ExitCode(err)
	}

	fmt.Printf("seccfg: lock_state=%s critical_lock_state=%s\n", lock, critical)
	return session.ExitCode(s.Close(ctx))
}

func buildEngine(name string, mem seccfg.MemoryAccessor, regs seccfg.Registers) (seccfg.AesCbcBlock, error) {
	switch name {
	case "sej":
		return seccfg.NewSejEngine(mem, regs), nil
	case "dxcc":
		return seccfg.NewDxccEngine(mem, regs), nil
	default:
		return nil, fmt.Errorf("unknown seccfg engine %q, want sej or dxcc", name)
	}
}

func parseLockState(s string) (seccfg.LockState, error) {
	switch s {
	case "default":
		return seccfg.LockStateDefault, nil
	case "mp-default":
		return seccfg.LockStateMPDefault, nil
	case "unlock":
		return seccfg.LockStateUnlock, nil
	case "lock":
		return seccfg.LockStateLock, nil
	case "verified":
		return seccfg.LockStateVerified, nil
	case "custom":
		return seccfg.LockStateCustom, nil
	default:
		return 0, fmt.Errorf("unknown -lock-state %q", s)
	}
}

func parseCriticalLockState(s string) (seccfg.CriticalLockState, error) {
	switch s {
	case "lock":
		return seccfg.CriticalLockStateLock, nil
	case "unlock":
		return seccfg.CriticalLockStateUnlock, nil
	default:
		return 0, fmt.Errorf("unknown -critical-lock-state %q", s)
	}
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
