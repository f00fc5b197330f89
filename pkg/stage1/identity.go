// Package stage1 drives the MTK Preloader/BROM wire protocol: the
// byte-echo handshake, the device identity probe, memory peek/poke, and
// the DA upload + SLA challenge/response sequence that hands control to a
// stage-2 agent.
package stage1

// TargetConfig is the bitset returned by GET_TARGET_CONFIG, decoded into
// named booleans rather than leaving callers to mask bits themselves.
type TargetConfig struct {
	SBC          bool
	SLA          bool
	DAA          bool
	SWJTag       bool
	EPP          bool
	CertRequired bool
	MemReadAuth  bool
	MemWriteAuth bool
	CmdC8Blocked bool
}

// decodeTargetConfig maps the raw 32-bit GET_TARGET_CONFIG value onto
// TargetConfig. Bit positions follow the order target_config flags are
// listed, low bit first; this is the only ordering the source is
// unambiguous about.
func decodeTargetConfig(raw uint32) TargetConfig {
	return TargetConfig{
		SBC:          raw&(1<<0) != 0,
		SLA:          raw&(1<<1) != 0,
		DAA:          raw&(1<<2) != 0,
		SWJTag:       raw&(1<<3) != 0,
		EPP:          raw&(1<<4) != 0,
		CertRequired: raw&(1<<5) != 0,
		MemReadAuth:  raw&(1<<6) != 0,
		MemWriteAuth: raw&(1<<7) != 0,
		CmdC8Blocked: raw&(1<<8) != 0,
	}
}

// Identity is the immutable device identity discovered during stage-1,
// spec.md §3.
type Identity struct {
	HWCode          uint16
	HWSubCode       uint16
	HWVersion       uint16
	SWVersion       uint16
	ChipEvolution   uint16
	BLVersion       byte
	IsBROM          bool
	MEID            []byte
	SOCID           []byte
	TargetConfig    TargetConfig
	RawTargetConfig uint32
}
