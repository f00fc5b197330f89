// Package config loads the YAML configuration shared by flashkit's
// command-line tools: a yaml.v3 decoder with KnownFields(true), pointer
// fields for optional overrides that keep a default when unset, path resolution relative
// to the config file, and a single Validate pass before use.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/barnettlynn/flashkit/pkg/stage1"
)

// Config is the root configuration document for flashread/flashwrite/
// lockctl. daextract reads no config.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	DACatalog string          `yaml:"da_catalog_path"`
	SLAKeyDir string          `yaml:"sla_key_dir,omitempty"`
	Stage2    string          `yaml:"stage2_kind"`
	Timeouts  TimeoutsConfig  `yaml:"timeouts"`
	Seccfg    SeccfgConfig    `yaml:"seccfg,omitempty"`
}

// TransportConfig selects and configures the physical link.
type TransportConfig struct {
	Kind         string `yaml:"kind"` // "serial" or "usb"
	SerialDevice string `yaml:"serial_device,omitempty"`
	BaudRate     int    `yaml:"baud_rate,omitempty"`
	USBVendorID  string `yaml:"usb_vendor_id,omitempty"`  // hex, e.g. "0e8d"
	USBProductID string `yaml:"usb_product_id,omitempty"` // hex, e.g. "2000"
	USBInEP      int    `yaml:"usb_in_endpoint,omitempty"`
	USBOutEP     int    `yaml:"usb_out_endpoint,omitempty"`
}

// TimeoutsConfig overrides stage1.DefaultTimeouts(); unset fields keep the
// default. Pointers distinguish "not configured" from an explicit zero.
type TimeoutsConfig struct {
	ByteWindowMS *int `yaml:"byte_window_ms,omitempty"`
	IdentityMS   *int `yaml:"identity_ms,omitempty"`
	BulkMS       *int `yaml:"bulk_ms,omitempty"`
}

// SeccfgConfig names the crypto engine and memory-mapped registers lockctl
// drives to encrypt/decrypt the seccfg partition's trailing hash, spec.md
// §4.8. These addresses are chip-specific and unpinned by spec.md, so they
// are always config-supplied rather than hard-coded per engine kind.
type SeccfgConfig struct {
	Engine     string `yaml:"engine"` // "sej" or "dxcc"
	DataReg    string `yaml:"data_reg"`
	ControlReg string `yaml:"control_reg"`
	StatusReg  string `yaml:"status_reg"`
	Partition  string `yaml:"partition,omitempty"` // defaults to "seccfg"
}

// Resolve parses the three hex register addresses.
func (s SeccfgConfig) Resolve() (uint32, uint32, uint32, error) {
	data, err := strconv.ParseUint(s.DataReg, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("config.seccfg.data_reg: %w", err)
	}
	ctrl, err := strconv.ParseUint(s.ControlReg, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("config.seccfg.control_reg: %w", err)
	}
	status, err := strconv.ParseUint(s.StatusReg, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("config.seccfg.status_reg: %w", err)
	}
	return uint32(data), uint32(ctrl), uint32(status), nil
}

// PartitionName returns the configured seccfg partition name, defaulting to
// "seccfg".
func (s SeccfgConfig) PartitionName() string {
	if strings.TrimSpace(s.Partition) == "" {
		return "seccfg"
	}
	return s.Partition
}

// Resolve merges TimeoutsConfig onto stage1.DefaultTimeouts().
func (t TimeoutsConfig) Resolve() stage1.Timeouts {
	out := stage1.DefaultTimeouts()
	if t.ByteWindowMS != nil {
		out.ByteWindow = time.Duration(*t.ByteWindowMS) * time.Millisecond
	}
	if t.IdentityMS != nil {
		out.Identity = time.Duration(*t.IdentityMS) * time.Millisecond
	}
	if t.BulkMS != nil {
		out.Bulk = time.Duration(*t.BulkMS) * time.Millisecond
	}
	return out
}

// Load reads, decodes, resolves relative paths against, and validates the
// config file at path.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.resolvePaths(path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the fields every command needs before touching a
// device: a usable transport configuration, a readable DA catalog, and a
// recognized stage-2 kind.
func (c *Config) Validate() error {
	switch c.Transport.Kind {
	case "serial":
		if strings.TrimSpace(c.Transport.SerialDevice) == "" {
			return fmt.Errorf("config.transport.serial_device is required for kind=serial")
		}
		if c.Transport.BaudRate <= 0 {
			return fmt.Errorf("config.transport.baud_rate must be > 0 for kind=serial")
		}
	case "usb":
		if _, err := strconv.ParseUint(c.Transport.USBVendorID, 16, 16); err != nil {
			return fmt.Errorf("config.transport.usb_vendor_id must be a 16-bit hex value: %w", err)
		}
		if _, err := strconv.ParseUint(c.Transport.USBProductID, 16, 16); err != nil {
			return fmt.Errorf("config.transport.usb_product_id must be a 16-bit hex value: %w", err)
		}
		if c.Transport.USBInEP == 0 {
			c.Transport.USBInEP = 1
		}
		if c.Transport.USBOutEP == 0 {
			c.Transport.USBOutEP = 1
		}
	default:
		return fmt.Errorf("config.transport.kind must be \"serial\" or \"usb\", got %q", c.Transport.Kind)
	}

	if err := validateReadableFile(c.DACatalog, "config.da_catalog_path"); err != nil {
		return err
	}

	switch c.Stage2 {
	case "xflash", "legacy", "xml", "bsl":
	default:
		return fmt.Errorf("config.stage2_kind must be one of xflash|legacy|xml|bsl, got %q", c.Stage2)
	}

	return nil
}

func (c *Config) resolvePaths(configPath string) {
	dir := filepath.Dir(configPath)
	c.DACatalog = resolvePath(dir, c.DACatalog)
	c.SLAKeyDir = resolvePath(dir, c.SLAKeyDir)
}

func resolvePath(baseDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Clean(filepath.Join(baseDir, trimmed))
}

func validateReadableFile(path string, field string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%s is required", field)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s must point to a file, got a directory", field)
	}
	return nil
}
