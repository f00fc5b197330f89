// Package catalog holds the opcode constants and status-code taxonomy
// shared by every driver layer, centralizing command bytes and status
// words rather than scattering magic numbers per call site.
package catalog

// Stage-1 (MTK Preloader/BROM) command bytes, spec.md §4.3.
const (
	CmdGetHWCode       byte = 0xFD
	CmdGetBLVer        byte = 0xFE
	CmdGetHWSWVer      byte = 0xFC
	CmdGetTargetConfig byte = 0xD8
	CmdGetPLCap        byte = 0xFB
	CmdGetMEID         byte = 0xE1
	CmdGetSOCID        byte = 0xE7

	CmdRead16  byte = 0xD0
	CmdRead32  byte = 0xD1
	CmdWrite16 byte = 0xD2
	CmdWrite32 byte = 0xD4

	CmdSendDA byte = 0xD7
	CmdJumpDA byte = 0xD5
	CmdJump64 byte = 0xDE
	CmdSLA    byte = 0xE3
)

// Stage-1 status codes, spec.md §4.3/§7.
const (
	StatusOK          uint16 = 0x0000
	StatusSLARequired uint16 = 0x1D0D
	StatusSLAPass     uint16 = 0x7017
	StatusSBCEnabled  uint16 = 0x1D01
)

// DASecRangeLo/Hi bound the DA_SEC_* security status range, spec.md §4.3.
const (
	DASecRangeLo uint16 = 0x1D00
	DASecRangeHi uint16 = 0x1D0D
)

// IsDASecStatus reports whether code falls in the DA_SEC_* range.
func IsDASecStatus(code uint16) bool {
	return code >= DASecRangeLo && code <= DASecRangeHi
}

// Stage-2 XFlash top-level commands, spec.md §4.4.
const (
	XCmdDeviceCtrl     uint32 = 0x00000010
	XCmdBootTo          uint32 = 0x00000001
	XCmdShutdown        uint32 = 0x00000003
	XCmdReboot          uint32 = 0x00000004
	XCmdReadPartition   uint32 = 0x00000005
	XCmdWritePartition  uint32 = 0x00000006
	XCmdFormatPartition uint32 = 0x00000007
	XCmdReadFlash       uint32 = 0x00000002
)

// XFlash device-control subcommand codes (sent as a parameter following
// XCmdDeviceCtrl), spec.md §4.4.
const (
	XSubGetChipID          uint32 = 0x00000001
	XSubGetRAMInfo         uint32 = 0x00000002
	XSubGetEMMCInfo        uint32 = 0x00000003
	XSubGetUFSInfo         uint32 = 0x00000004
	XSubGetNANDInfo        uint32 = 0x00000005
	XSubGetNORInfo         uint32 = 0x00000006
	XSubGetDAVersion       uint32 = 0x00000007
	XSubGetRandomID        uint32 = 0x00000008
	XSubGetConnectionAgent uint32 = 0x00000009
	XSubGetSLAStatus       uint32 = 0x0000000A
	XSubGetPacketLength    uint32 = 0x0000000B
)

// XFlash status sentinels, spec.md §4.4.
const (
	StatusContinue uint32 = 0x40040004
	StatusComplete uint32 = 0x40040005
)

// Legacy stage-2 single-byte response bytes, spec.md §4.5.
const (
	LegacyACK  byte = 0x5A
	LegacyNACK byte = 0xA5
	LegacyCont byte = 0x69
)

// Legacy stage-2 opcodes, spec.md §4.5.
const (
	LegacyCmdReadFlash  byte = 0xA2
	LegacyCmdWriteFlash byte = 0xA7
	LegacyCmdEraseFlash byte = 0xA6
	LegacyCmdFormat     byte = 0xA9
	LegacyCmdReadPMT    byte = 0xC1
	LegacyCmdWritePMT   byte = 0xC2
	LegacyCmdReadReg32  byte = 0xC5
	LegacyCmdWriteReg32 byte = 0xC6
	LegacyCmdReboot     byte = 0xAA
	LegacyCmdShutdown   byte = 0xAB
)

// SPRD BSL command bytes, spec.md §4.7.
const (
	BSLConnect         byte = 0x00
	BSLDataStart       byte = 0x01
	BSLDataMidst       byte = 0x02
	BSLDataEnd         byte = 0x03
	BSLDataExec        byte = 0x04
	BSLReadFlash       byte = 0x05
	BSLReadPartition   byte = 0x0B
	BSLWritePartition  byte = 0x0C
	BSLErasePartition  byte = 0x0D
	BSLPowerOff        byte = 0x0E
	BSLReset           byte = 0x0F
	BSLChangeBaudrate  byte = 0x12
	BSLReadUID         byte = 0x14
)

// SPRD BSL response bytes, spec.md §4.7.
const (
	BSLRspOK          byte = 0x80
	BSLRspError       byte = 0x81
	BSLRspData        byte = 0x82
	BSLRspBusy        byte = 0x83
	BSLRspVerifyError byte = 0x84
)

// Secure-config constants, spec.md §3/§6.
const (
	SeccfgMagic   uint32 = 0x4D4D4D4D
	SeccfgEndFlag uint32 = 0x45454545
)
