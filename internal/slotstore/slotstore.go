// Package slotstore implements the slot store (C3): the active-slot marker
// and the two slot directories it owns exclusively. Grounded on the
// teacher's WorkenvPaths path-builder pattern, with the marker write made
// atomic via a temp-file-then-rename, per the commit-point invariant in
// SPEC_FULL §4.3.
package slotstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Slot identifies one of the two interchangeable installation directories.
type Slot string

const (
	SlotA Slot = "A"
	SlotB Slot = "B"
)

// Other returns the slot that is not s.
func (s Slot) Other() Slot {
	if s == SlotA {
		return SlotB
	}
	return SlotA
}

const activeMarkerFile = "active.txt"

// Store owns the ActiveMarker file and the A/B slot directories under
// baseDir.
type Store struct {
	baseDir string
	log     hclog.Logger
}

// New returns a Store rooted at baseDir. baseDir is created on first use by
// ReadActive, not by New, matching the teacher's lazy-create-on-first-access
// idiom.
func New(baseDir string, log hclog.Logger) *Store {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Store{baseDir: baseDir, log: log.Named("slotstore")}
}

func (s *Store) markerPath() string {
	return filepath.Join(s.baseDir, activeMarkerFile)
}

// PathOf returns the slot directory for slot.
func (s *Store) PathOf(slot Slot) string {
	return filepath.Join(s.baseDir, string(slot))
}

// ReadActive returns the active slot. If the ActiveMarker file is absent it
// bootstraps: base dir and slot A directory are created, "A" is written as
// the marker, and "A" is returned. ReadActive is total; it never returns an
// error for a missing marker, only for unrecoverable I/O failure.
func (s *Store) ReadActive() (Slot, error) {
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return "", fmt.Errorf("slotstore: creating base dir: %w", err)
	}

	raw, err := os.ReadFile(s.markerPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("slotstore: reading active marker: %w", err)
		}
		s.log.Info("no active marker found, bootstrapping slot A")
		if err := os.MkdirAll(s.PathOf(SlotA), 0o755); err != nil {
			return "", fmt.Errorf("slotstore: creating slot A: %w", err)
		}
		if err := s.WriteActive(SlotA); err != nil {
			return "", err
		}
		return SlotA, nil
	}

	slot := Slot(strings.TrimSpace(string(raw)))
	if slot != SlotA && slot != SlotB {
		s.log.Warn("active marker contained an unrecognized value, defaulting to A", "value", string(raw))
		return SlotA, nil
	}
	return slot, nil
}

// WriteActive overwrites the ActiveMarker atomically: it writes to a
// sibling temp file and renames it over the marker, so a crash mid-write
// never leaves a half-written marker. The rename is the commit point.
func (s *Store) WriteActive(slot Slot) error {
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return fmt.Errorf("slotstore: creating base dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.baseDir, ".active-*.tmp")
	if err != nil {
		return fmt.Errorf("slotstore: creating temp marker: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(string(slot)); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("slotstore: writing temp marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("slotstore: closing temp marker: %w", err)
	}

	if err := os.Rename(tmpPath, s.markerPath()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("slotstore: committing active marker: %w", err)
	}

	s.log.Debug("active marker committed", "slot", string(slot))
	return nil
}

// WipeAll removes both slot directories and recreates an empty base
// directory. This is the catastrophic recovery escape hatch; the next run
// re-bootstraps from scratch via ReadActive.
func (s *Store) WipeAll() error {
	s.log.Warn("wiping all slot state")
	if err := os.RemoveAll(s.baseDir); err != nil {
		return fmt.Errorf("slotstore: wiping base dir: %w", err)
	}
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return fmt.Errorf("slotstore: recreating base dir: %w", err)
	}
	return nil
}
