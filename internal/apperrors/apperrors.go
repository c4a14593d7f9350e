// Package apperrors collects the discriminated error kinds the launcher's
// components report, so the orchestrator can branch on cause rather than on
// error text.
package apperrors

import "errors"

var (
	// Network errors 🌐
	ErrNetwork = errors.New("network request failed")
	ErrParse   = errors.New("response body could not be parsed")

	// Manifest errors 📄
	ErrMalformedManifest = errors.New("manifest is malformed")
	ErrBadSignature      = errors.New("manifest signature is missing or not valid base64")
	ErrSignatureInvalid  = errors.New("manifest signature verification failed")
	ErrEmptyManifest     = errors.New("manifest lists no files")

	// Launch and recovery errors 📦
	ErrLaunchFailed     = errors.New("failed to launch child process")
	ErrCatastrophicWipe = errors.New("could not wipe slot state after repeated failure")
)

// PathError reports a manifest error tied to one file path inside a slot.
type PathError struct {
	Op   string // "missing file" | "hash mismatch" | "unsafe path"
	Path string
}

func (e *PathError) Error() string {
	return e.Op + ": " + e.Path
}

// NewMissingFileError reports that a manifest-listed file is absent from the slot.
func NewMissingFileError(path string) error {
	return &PathError{Op: "missing file", Path: path}
}

// NewHashMismatchError reports that a file's content does not match its manifest hash.
func NewHashMismatchError(path string) error {
	return &PathError{Op: "hash mismatch", Path: path}
}

// NewUnsafePathError reports a manifest path containing a ".." segment.
func NewUnsafePathError(path string) error {
	return &PathError{Op: "unsafe path", Path: path}
}

// StageError reports which stage of a multi-step operation failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return "install failed at stage " + e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewInstallFailure wraps err with the stage of downloadAndInstall that failed.
func NewInstallFailure(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}
