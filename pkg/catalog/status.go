package catalog

import "fmt"

// StatusError represents a non-zero status code returned by a device: a
// tiny struct pairing the command that failed with the code, formatting
// itself with a human-readable description.
type StatusError struct {
	Cmd  string
	Code uint32
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("command %s failed with status %#08x (%s)", e.Cmd, e.Code, Describe(e.Code))
}

// Describe returns a human-readable label for a status code, covering both
// the 16-bit stage-1 codes and the 32-bit stage-2 XFlash sentinels. Unknown
// codes get a generic label rather than an error — probing an undocumented
// chip should not crash on an unrecognized status.
func Describe(code uint32) string {
	switch uint16(code) {
	case uint16(StatusOK):
		return "ok"
	case uint16(StatusSLARequired):
		return "SLA authentication required"
	case uint16(StatusSLAPass):
		return "SLA authentication passed"
	case uint16(StatusSBCEnabled):
		return "secure boot enabled, unsigned DA rejected"
	}
	switch code {
	case StatusContinue:
		return "more data pending"
	case StatusComplete:
		return "operation complete"
	}
	if IsDASecStatus(uint16(code)) {
		return "DA security rejection"
	}
	return "unrecognized status"
}

// DescribeBSL maps an SPRD BSL response byte to a label.
func DescribeBSL(b byte) string {
	switch b {
	case BSLRspOK:
		return "ok"
	case BSLRspError:
		return "error"
	case BSLRspData:
		return "data"
	case BSLRspBusy:
		return "busy"
	case BSLRspVerifyError:
		return "verify error"
	default:
		return "unrecognized response"
	}
}
