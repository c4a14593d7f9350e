// Package manifest implements the manifest verifier (C2): parsing a slot's
// manifest.json, verifying its RSA/PKCS1v15/SHA-256 signature over the
// canonical encoding of its unsigned fields, and verifying every listed
// file's SHA-256 against the slot directory on disk.
package manifest

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/meinefirma/meineapp-launcher/internal/apperrors"
	"github.com/meinefirma/meineapp-launcher/internal/canonicaljson"
)

// Manifest is the parsed form of a slot's manifest.json.
type Manifest struct {
	Version   string            `json:"version"`
	Files     map[string]string `json:"files"`
	Signature string            `json:"signature"`
}

// Verifier checks a slot's manifest against an embedded public key. The key
// is constructor-supplied configuration, never a package-level singleton.
type Verifier struct {
	publicKey *rsa.PublicKey
	log       hclog.Logger
}

// NewVerifier parses a PEM-encoded RSA public key and returns a Verifier
// bound to it.
func NewVerifier(publicKeyPEM []byte, log hclog.Logger) (*Verifier, error) {
	block, _ := pem.Decode(publicKeyPEM)
	if block == nil {
		return nil, fmt.Errorf("manifest: no PEM block found in public key")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("manifest: parsing public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("manifest: public key is not RSA")
	}

	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Verifier{publicKey: rsaPub, log: log.Named("manifest")}, nil
}

// Verify parses manifestPath and checks its signature and per-file hashes
// against slotDir, following the steps in §4.2: parse, decode signature,
// rebuild the canonical unsigned view, verify the signature, then verify
// every listed file.
func (v *Verifier) Verify(manifestPath, slotDir string) error {
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrMalformedManifest, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrMalformedManifest, err)
	}

	sigRaw, ok := doc["signature"].(string)
	if !ok || sigRaw == "" {
		return apperrors.ErrBadSignature
	}
	sig, err := base64.StdEncoding.DecodeString(sigRaw)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrBadSignature, err)
	}

	version, ok := doc["version"].(string)
	if !ok || version == "" {
		return fmt.Errorf("%w: missing or empty version", apperrors.ErrMalformedManifest)
	}
	filesRaw, ok := doc["files"].(map[string]any)
	if !ok {
		return fmt.Errorf("%w: files is not an object", apperrors.ErrMalformedManifest)
	}

	normalizedFiles := make(map[string]string, len(filesRaw))
	for rawPath, rawHash := range filesRaw {
		hash, ok := rawHash.(string)
		if !ok {
			return fmt.Errorf("%w: hash for %q is not a string", apperrors.ErrMalformedManifest, rawPath)
		}
		normPath, err := NormalizePath(rawPath)
		if err != nil {
			return err
		}
		normalizedFiles[normPath] = strings.ToLower(hash)
	}

	unsignedView := map[string]any{
		"version": version,
		"files":   normalizedFiles,
	}
	encoded, err := canonicaljson.Encode(unsignedView)
	if err != nil {
		return fmt.Errorf("%w: encoding unsigned view: %v", apperrors.ErrMalformedManifest, err)
	}

	digest := sha256.Sum256(encoded)
	if err := rsa.VerifyPKCS1v15(v.publicKey, crypto.SHA256, digest[:], sig); err != nil {
		v.log.Debug("signature verification failed", "error", err)
		return apperrors.ErrSignatureInvalid
	}

	for relPath, expectedHex := range normalizedFiles {
		fullPath := filepath.Join(slotDir, filepath.FromSlash(relPath))
		data, err := os.ReadFile(fullPath)
		if err != nil {
			return apperrors.NewMissingFileError(relPath)
		}
		actualHex := hex.EncodeToString(sha256Sum(data))
		if actualHex != expectedHex {
			return apperrors.NewHashMismatchError(relPath)
		}
	}

	if len(normalizedFiles) == 0 {
		return apperrors.ErrEmptyManifest
	}

	return nil
}

func sha256Sum(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// NormalizePath implements the §4.2 path-normalization rule: accept either
// separator, drop empty and "." segments, reject any ".." segment, and
// rejoin with "/" for the canonical hashing form.
func NormalizePath(relPath string) (string, error) {
	unified := strings.ReplaceAll(relPath, "\\", "/")
	parts := strings.Split(unified, "/")

	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			return "", apperrors.NewUnsafePathError(relPath)
		default:
			cleaned = append(cleaned, part)
		}
	}

	return path.Join(cleaned...), nil
}
