package runtime

import (
	"errors"

	"github.com/justapithecus/partflow/ingest"
	"github.com/justapithecus/partflow/lode"
	"github.com/justapithecus/partflow/types"
)

// Process exit codes for a single request.
const (
	ExitSuccess        = 0 // parser emitted end and every side effect succeeded
	ExitParseError     = 1 // parser emitted error
	ExitStorageFailure = 2 // a file, manifest or adapter write failed
	ExitAborted        = 3 // transport aborted the request
)

// DetermineOutcome maps the error returned by Parser.Parse to an outcome.
func DetermineOutcome(err error) types.Outcome {
	switch {
	case err == nil:
		return types.Outcome{Status: types.OutcomeSuccess, Message: "request parsed"}
	case errors.Is(err, ingest.ErrRequestAborted):
		return types.Outcome{Status: types.OutcomeAborted, Message: err.Error()}
	default:
		return types.Outcome{Status: types.OutcomeError, Message: err.Error()}
	}
}

// ExitCode returns the process exit code for a request result.
//
// An abort wins over everything else. A storage error latched during the
// parse counts as a storage failure rather than a parse error. A parse
// that ended cleanly still fails with ExitStorageFailure when writing the
// manifest or publishing the event failed.
func ExitCode(result *RequestResult) int {
	switch result.Outcome.Status {
	case types.OutcomeAborted:
		return ExitAborted
	case types.OutcomeError:
		if lode.IsStorageError(result.Err) {
			return ExitStorageFailure
		}
		return ExitParseError
	}
	if result.StorageErr != nil || result.AdapterErr != nil {
		return ExitStorageFailure
	}
	return ExitSuccess
}
