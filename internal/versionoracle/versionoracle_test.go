package versionoracle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalVersionReadsSidecarFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, versionFileName), []byte("1.2.3.4\n"), 0o644))
	require.Equal(t, "1.2.3.4", LocalVersion(dir))
}

func TestLocalVersionFallsBackWhenAbsentOrUnparsable(t *testing.T) {
	dir := t.TempDir()
	require.Equal(t, unknownVersion, LocalVersion(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, versionFileName), []byte("not-a-version"), 0o644))
	require.Equal(t, unknownVersion, LocalVersion(dir))
}

func TestIsUpToDateReflexiveAndAntisymmetric(t *testing.T) {
	versions := []string{"1.0.0.0", "1.2.0.0", "0.9.9.9", "2.0.0.0"}
	for _, v := range versions {
		require.True(t, IsUpToDate(v, v), "reflexive for %s", v)
	}

	pairs := [][2]string{
		{"1.0.0.0", "1.0.0.1"},
		{"1.2.0.0", "1.3.0.0"},
		{"2.0.0.0", "1.9.9.9"},
	}
	for _, p := range pairs {
		a, b := IsUpToDate(p[0], p[1]), IsUpToDate(p[1], p[0])
		require.True(t, a != b, "expected exactly one direction up to date for %v", p)
	}
}

func TestIsUpToDateComponentWiseShortCircuits(t *testing.T) {
	require.True(t, IsUpToDate("2.0.0.0", "1.9.9.9"))
	require.False(t, IsUpToDate("1.9.9.9", "2.0.0.0"))
	require.True(t, IsUpToDate("1.2.3.4", "1.2.3.4"))
}

func TestIsUpToDateRejectsMalformedVersions(t *testing.T) {
	require.False(t, IsUpToDate("1.2.3", "1.2.3.4"))
	require.False(t, IsUpToDate("1.2.3.4", "garbage"))
	require.False(t, IsUpToDate("a.b.c.d", "1.2.3.4"))
}
