// Package bringup drives a freshly-opened session through the common
// Opened→Operational path every flashkit command needs before it can read,
// write, erase, or format a partition, spec.md §3's session state machine.
package bringup

import (
	"context"
	"fmt"

	"github.com/barnettlynn/flashkit/pkg/session"
	"github.com/barnettlynn/flashkit/pkg/stage2"
)

// Use64BitJumpDA selects the 64-bit JUMP_DA variant; false picks the
// 32-bit one. Left as a package constant rather than per-call config
// since every known target this engine talks to is 32-bit stage-1.
const Use64BitJumpDA = false

// Run performs handshake, identity probe, DA selection, DA upload + jump,
// and stage-2 storage/partition discovery, leaving s in StateOperational
// on success.
func Run(ctx context.Context, s *session.Session, kind stage2.Kind) error {
	if err := s.Handshake(ctx); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	if _, err := s.ProbeIdentity(ctx); err != nil {
		return fmt.Errorf("probe identity: %w", err)
	}
	if _, err := s.SelectDA(ctx); err != nil {
		return fmt.Errorf("select da: %w", err)
	}
	if err := s.UploadAndJump(ctx, kind, Use64BitJumpDA); err != nil {
		return fmt.Errorf("upload/jump da: %w", err)
	}
	if _, err := s.LoadStorageInfo(ctx); err != nil {
		return fmt.Errorf("load storage info: %w", err)
	}
	if _, err := s.LoadPartitions(ctx); err != nil {
		return fmt.Errorf("load partitions: %w", err)
	}
	return nil
}
