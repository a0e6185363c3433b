package entity

import "errors"

// Outcome is the terminal state of a create or redirect request.
type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeCreated        Outcome = "created"
	OutcomeRedirectIssued Outcome = "redirect_issued"
	OutcomeRejected       Outcome = "rejected"
	OutcomeNotFound       Outcome = "not_found"
	OutcomeInvalid        Outcome = "invalid"
	OutcomeConflict       Outcome = "conflict"
	OutcomeFailed         Outcome = "failed"
)

// OutcomeOf classifies the error returned by a request. A nil error means the
// request succeeded with the given success outcome.
func OutcomeOf(err error, success Outcome) Outcome {
	switch {
	case err == nil:
		return success
	case errors.Is(err, ErrRateLimited):
		return OutcomeRejected
	case errors.Is(err, ErrURLNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrInvalidURL), errors.Is(err, ErrInvalidCode), errors.Is(err, ErrInvalidExpiry):
		return OutcomeInvalid
	case errors.Is(err, ErrCodeAlreadyTaken):
		return OutcomeConflict
	default:
		return OutcomeFailed
	}
}
