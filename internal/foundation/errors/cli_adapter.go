package errors

import (
	"fmt"
	"log/slog"
)

// CLIErrorAdapter maps errors to exit codes and log lines for the command line.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	classified, ok := AsClassified(err)
	if !ok {
		return 1
	}
	switch classified.Category() {
	case CategoryValidation:
		return 2
	case CategoryConfig:
		return 7
	case CategoryVCS:
		return 8
	case CategoryStructure, CategoryInclude, CategoryTemplate, CategoryFileSystem:
		return 11
	case CategoryHistory:
		return 12
	case CategoryInternal:
		return 10
	default:
		return 1
	}
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	classified, ok := AsClassified(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}
	if a.verbose || classified.Cause() == nil {
		return classified.Error()
	}
	return fmt.Sprintf("[%s] %s", classified.Category(), classified.Message())
}

// Log writes err at a level derived from its severity.
func (a *CLIErrorAdapter) Log(msg string, err error) {
	classified, ok := AsClassified(err)
	if !ok {
		a.logger.Error(msg, "error", err)
		return
	}
	args := append([]any{"error", a.FormatError(err)}, classified.LogAttrs()...)
	if classified.Severity() == SeverityWarning {
		a.logger.Warn(msg, args...)
		return
	}
	a.logger.Error(msg, args...)
}
