// Package versionoracle implements the version oracle (C4): reading the
// locally installed four-part version from a slot and comparing two version
// strings component-wise. Resolves the open question flagged in SPEC_FULL
// §9: comparisons are always numeric, never string equality.
package versionoracle

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// unknownVersion is returned whenever a slot's version cannot be
	// determined.
	unknownVersion = "0.0.0.0"

	// versionFileName is the well-known filename inside a slot that carries
	// the installed application's version, one line, four dotted integers.
	// The original runtime reads this from PE/DLL binary metadata; this
	// launcher reads it from a plain text sidecar file the payload ships
	// alongside the executable named in SPEC_FULL §6.
	versionFileName = "MeineApp.version"
)

// LocalVersion reads the four-part version string recorded for the payload
// installed under slotDir. If the version file is absent or unparsable, it
// returns "0.0.0.0" per §4.4.
func LocalVersion(slotDir string) string {
	raw, err := os.ReadFile(filepath.Join(slotDir, versionFileName))
	if err != nil {
		return unknownVersion
	}

	version := strings.TrimSpace(string(raw))
	if _, ok := parseComponents(version); !ok {
		return unknownVersion
	}
	return version
}

// IsUpToDate reports whether local is at least as new as remote, comparing
// the first four dot-separated integer components from most to least
// significant. If either string does not have at least four integer
// components, it returns false, forcing an update attempt.
func IsUpToDate(local, remote string) bool {
	localParts, ok := parseComponents(local)
	if !ok {
		return false
	}
	remoteParts, ok := parseComponents(remote)
	if !ok {
		return false
	}

	for i := 0; i < 4; i++ {
		switch {
		case localParts[i] > remoteParts[i]:
			return true
		case localParts[i] < remoteParts[i]:
			return false
		}
	}
	return true
}

func parseComponents(version string) ([4]int, bool) {
	var out [4]int
	parts := strings.Split(version, ".")
	if len(parts) < 4 {
		return out, false
	}
	for i := 0; i < 4; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return out, false
		}
		out[i] = n
	}
	return out, true
}
