// Package exitcode defines the process-level exit codes the launcher's
// entry point returns, in the spirit of the teacher's Exit* constant block
// in pkg/psp/format_2025/launcher_validation.go.
package exitcode

const (
	OK           = 0
	Panic        = 101
	ConfigError  = 102
	Catastrophic = 103
	InvalidArgs  = 104
)
