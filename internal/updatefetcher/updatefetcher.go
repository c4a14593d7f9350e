// Package updatefetcher implements the update fetcher (C5): retrieving
// remote UpdateInfo metadata and a ZIP payload archive over HTTP, then
// unpacking the archive into a slot directory. Grounded on the teacher's
// extraction flow in execution_slots.go (wipe-then-extract into a target
// directory), using net/http and archive/zip because no third-party HTTP
// client or ZIP library appears anywhere in the example pack.
package updatefetcher

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/meinefirma/meineapp-launcher/internal/apperrors"
)

// UpdateInfo is the remote update.json document.
type UpdateInfo struct {
	Version string `json:"Version"`
	Url     string `json:"Url"`
}

// Fetcher retrieves UpdateInfo and payload archives over HTTP.
type Fetcher struct {
	updateInfoURL string
	tempZipPath   string
	client        *http.Client
	log           hclog.Logger
}

// New returns a Fetcher configured with updateInfoURL and an HTTP client
// timeout. tempZipPath is the scratch file overwritten on every download,
// matching the fixed %TEMP%/MeineApp_Update.zip path from SPEC_FULL §6.
func New(updateInfoURL string, httpTimeout time.Duration, log hclog.Logger) *Fetcher {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Fetcher{
		updateInfoURL: updateInfoURL,
		tempZipPath:   filepath.Join(os.TempDir(), "MeineApp_Update.zip"),
		client:        &http.Client{Timeout: httpTimeout},
		log:           log.Named("updatefetcher"),
	}
}

// FetchInfo GETs the configured update metadata URL and decodes it.
func (f *Fetcher) FetchInfo() (UpdateInfo, error) {
	resp, err := f.client.Get(f.updateInfoURL)
	if err != nil {
		return UpdateInfo{}, fmt.Errorf("%w: %v", apperrors.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return UpdateInfo{}, fmt.Errorf("%w: unexpected status %s", apperrors.ErrNetwork, resp.Status)
	}

	var info UpdateInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return UpdateInfo{}, fmt.Errorf("%w: %v", apperrors.ErrParse, err)
	}
	return info, nil
}

// DownloadAndInstall downloads info.Url, wipes slotDir, and extracts the
// archive into it. Any failure is reported as an InstallFailure tagged with
// the stage that failed; slotDir may be left partially populated by design
// (the next cycle re-attempts and re-verifies).
func (f *Fetcher) DownloadAndInstall(slotDir string, info UpdateInfo) error {
	if err := f.download(info.Url); err != nil {
		return apperrors.NewInstallFailure("download", err)
	}

	if err := os.RemoveAll(slotDir); err != nil {
		return apperrors.NewInstallFailure("wipe-slot", err)
	}
	if err := os.MkdirAll(slotDir, 0o755); err != nil {
		return apperrors.NewInstallFailure("recreate-slot", err)
	}

	if err := extractZip(f.tempZipPath, slotDir); err != nil {
		return apperrors.NewInstallFailure("extract", err)
	}

	f.log.Info("install complete", "slot", slotDir, "version", info.Version)
	return nil
}

func (f *Fetcher) download(url string) error {
	resp, err := f.client.Get(url)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %s", apperrors.ErrNetwork, resp.Status)
	}

	out, err := os.Create(f.tempZipPath)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return err
	}
	return nil
}

// extractZip extracts every entry of zipPath flat into destDir, per the
// "flat into the slot directory" contract in SPEC_FULL §6. Entries whose
// normalized path would escape destDir are rejected defensively, mirroring
// the same path-safety discipline the manifest verifier enforces.
func extractZip(zipPath, destDir string) error {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	for _, entry := range reader.File {
		if err := extractZipEntry(entry, destDir); err != nil {
			return fmt.Errorf("extracting %s: %w", entry.Name, err)
		}
	}
	return nil
}

func extractZipEntry(entry *zip.File, destDir string) error {
	cleanName := strings.ReplaceAll(entry.Name, "\\", "/")
	targetPath := filepath.Join(destDir, filepath.FromSlash(cleanName))

	if !strings.HasPrefix(targetPath, filepath.Clean(destDir)+string(filepath.Separator)) &&
		targetPath != filepath.Clean(destDir) {
		return fmt.Errorf("zip entry escapes destination: %s", entry.Name)
	}

	if entry.FileInfo().IsDir() {
		return os.MkdirAll(targetPath, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return err
	}

	src, err := entry.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, entry.Mode())
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
