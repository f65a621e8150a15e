package history

import (
	"git.home.luguber.info/inful/htmlnorm/internal/foundation/errors"
)

var (
	// ErrNoRuns indicates the ledger holds no completed run.
	ErrNoRuns = errors.HistoryError("no runs recorded").Build()

	// ErrRunNotFound indicates an unknown run ID.
	ErrRunNotFound = errors.HistoryError("run not found").Build()
)
