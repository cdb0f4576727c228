// services/errors.go
package services

import "errors"

// Error taxonomy for the commission engine. Fraud and duplicate outcomes are
// local decisions; conflict errors are transient and retried with bounded
// backoff before being surfaced.
var (
	// ErrFraudRejected marks a referral edge the fraud gate refused to pay.
	ErrFraudRejected = errors.New("referral edge rejected by fraud gate")

	// ErrDuplicateActivation marks a replayed activation event. It is an
	// idempotent no-op, never an error to the external caller.
	ErrDuplicateActivation = errors.New("activation event already settled")

	// ErrAccountNotFound is fatal only for the level it occurs on.
	ErrAccountNotFound = errors.New("account not found")

	// ErrLedgerWriteConflict is a transient storage conflict on a credit.
	ErrLedgerWriteConflict = errors.New("ledger write conflict")

	// ErrSettlementFailed is surfaced after credit retries are exhausted.
	// The caller may safely retry the whole activation.
	ErrSettlementFailed = errors.New("settlement failed")

	// ErrTierTransitionConflict is a transient conflict on an agent's tier
	// state update.
	ErrTierTransitionConflict = errors.New("tier transition conflict")
)
