package xmlproto

import (
	"context"
	"encoding/hex"

	"github.com/barnettlynn/flashkit/pkg/ferrors"
)

// VerifySLA runs the XML-only DA SLA verification sequence, spec.md
// §4.6: GET-SYS-PROPERTY(DA.SLA) → if "Enabled", SECURITY-GET-DEV-FW-INFO
// returns {rnd, hrid, socid} hex-encoded; the challenge is
// selected_id || rnd, selected_id chosen by SLASelector; the installed
// Signer produces a signature, sent via SECURITY-SET-FLASH-POLICY.
func (d *Driver) VerifySLA(ctx context.Context) error {
	resp, err := d.call(ctx, CmdGetSysProperty, "DA.SLA")
	if err != nil {
		return err
	}
	if resp.Arg != "Enabled" {
		return nil
	}

	info, err := d.call(ctx, CmdSecurityGetDevFwInfo, "")
	if err != nil {
		return err
	}
	rnd, hrid, socid, err := parseDevFwInfo(info.Arg)
	if err != nil {
		return err
	}

	var selectedID []byte
	switch d.selector {
	case SLASelectHRID:
		selectedID = hrid
	case SLASelectSOCID:
		selectedID = socid
	}
	challenge := append(append([]byte{}, selectedID...), rnd...)

	sig, err := d.signer.Sign(challenge)
	if err != nil {
		return &ferrors.SecurityError{Kind: ferrors.SecuritySlaFailed}
	}

	_, err = d.call(ctx, CmdSecuritySetFlashPolicy, hex.EncodeToString(sig))
	if err != nil {
		return &ferrors.SecurityError{Kind: ferrors.SecuritySlaFailed}
	}
	return nil
}

// parseDevFwInfo decodes the "rnd:hrid:socid" hex-triplet returned by
// SECURITY-GET-DEV-FW-INFO. The exact delimiter is not pinned by the
// source; a colon-joined hex triplet is this engine's own wire choice for
// round-tripping through <arg>, consistent with WritePartition's
// "name:length" convention above.
func parseDevFwInfo(arg string) (rnd, hrid, socid []byte, err error) {
	parts := splitThree(arg)
	rnd, err = hex.DecodeString(parts[0])
	if err != nil {
		return nil, nil, nil, err
	}
	hrid, err = hex.DecodeString(parts[1])
	if err != nil {
		return nil, nil, nil, err
	}
	socid, err = hex.DecodeString(parts[2])
	if err != nil {
		return nil, nil, nil, err
	}
	return rnd, hrid, socid, nil
}

func splitThree(s string) [3]string {
	var out [3]string
	idx := 0
	start := 0
	for i := 0; i < len(s) && idx < 2; i++ {
		if s[i] == ':' {
			out[idx] = s[start:i]
			idx++
			start = i + 1
		}
	}
	out[idx] = s[start:]
	return out
}
