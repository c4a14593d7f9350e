package updatefetcher

import (
	"archive/zip"
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/meinefirma/meineapp-launcher/internal/apperrors"
)

func testLogger() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{Name: "updatefetcher-test", Level: hclog.Trace})
}

func TestFetchInfoDecodesJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Version":"1.2.3.4","Url":"http://example.invalid/payload.zip"}`))
	}))
	defer server.Close()

	f := New(server.URL, 5*time.Second, testLogger())
	info, err := f.FetchInfo()
	require.NoError(t, err)
	require.Equal(t, "1.2.3.4", info.Version)
	require.Equal(t, "http://example.invalid/payload.zip", info.Url)
}

func TestFetchInfoReportsNetworkErrorOnBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := New(server.URL, 5*time.Second, testLogger())
	_, err := f.FetchInfo()
	require.Error(t, err)
	require.ErrorIs(t, err, apperrors.ErrNetwork)
}

func buildTestZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDownloadAndInstallExtractsArchiveIntoSlot(t *testing.T) {
	zipBytes := buildTestZip(t, map[string]string{
		"app.txt":        "hello",
		"nested/sub.txt": "world",
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(zipBytes)
	}))
	defer server.Close()

	f := New(server.URL+"/update.json", 5*time.Second, testLogger())
	slotDir := filepath.Join(t.TempDir(), "B")

	err := f.DownloadAndInstall(slotDir, UpdateInfo{Version: "1.0.0.0", Url: server.URL + "/payload.zip"})
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(slotDir, "app.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))

	got, err = os.ReadFile(filepath.Join(slotDir, "nested", "sub.txt"))
	require.NoError(t, err)
	require.Equal(t, "world", string(got))
}

func TestDownloadAndInstallWipesExistingSlotFirst(t *testing.T) {
	zipBytes := buildTestZip(t, map[string]string{"new.txt": "new-content"})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(zipBytes)
	}))
	defer server.Close()

	slotDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(slotDir, "stale.txt"), []byte("stale"), 0o644))

	f := New(server.URL+"/update.json", 5*time.Second, testLogger())
	err := f.DownloadAndInstall(slotDir, UpdateInfo{Version: "1.0.0.0", Url: server.URL + "/payload.zip"})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(slotDir, "stale.txt"))
	require.True(t, os.IsNotExist(err))
}

func TestDownloadAndInstallReportsStageOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := New(server.URL+"/update.json", 5*time.Second, testLogger())
	err := f.DownloadAndInstall(t.TempDir(), UpdateInfo{Version: "1.0.0.0", Url: server.URL + "/payload.zip"})
	require.Error(t, err)
	var stageErr *apperrors.StageError
	require.ErrorAs(t, err, &stageErr)
	require.Equal(t, "download", stageErr.Stage)
}
