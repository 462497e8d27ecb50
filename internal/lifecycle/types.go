// Package lifecycle implements the account lifecycle orchestration engine:
// the creation and closure state machines that coordinate the Organizations
// API, the sequence counter, and the OU resolver.
package lifecycle

import (
	"errors"
	"time"
)

// Status is a terminal or in-flight account creation state.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusSucceeded  Status = "SUCCEEDED"
	StatusFailed     Status = "FAILED"

	// StatusDryRun marks a projected record: the plan was computed but no
	// mutating call was issued.
	StatusDryRun Status = "DRY_RUN"
)

// Closure outcome states. ACTIVE appears for dry runs and for closure
// requests still pending when the poll bound elapsed.
const (
	CloseStateActive         = "ACTIVE"
	CloseStatePendingClosure = "PENDING_CLOSURE"
	CloseStateSuspended      = "SUSPENDED"
	CloseStateAlreadyClosed  = "ALREADY_CLOSED"
	CloseStateRequested      = "CLOSE_REQUESTED"
)

var (
	// ErrCreationFailed marks a terminal provider-side creation failure
	// (email already in use, account quota exceeded).
	ErrCreationFailed = errors.New("account creation failed")

	// ErrCreationTimeout means the creation poll bound elapsed with the
	// request still in flight. The account may still complete
	// asynchronously, so the failure is flagged retriable.
	ErrCreationTimeout = errors.New("account creation timed out")

	// ErrAccountNotFound means target resolution exhausted the account
	// list without a match.
	ErrAccountNotFound = errors.New("account not found")

	// ErrManagementAccount rejects any attempt to close the organization's
	// management account. Checked before any call, dry-run included.
	ErrManagementAccount = errors.New("cannot close the management account")

	// ErrAborted means the operator declined the bulk confirmation.
	ErrAborted = errors.New("aborted by operator")
)

// WaitStrategy paces the poll loops. Production uses time.Sleep; tests
// substitute a recording function so simulated time passes instantly.
type WaitStrategy func(d time.Duration)

// AccountRecord is the immutable result of one creation run.
type AccountRecord struct {
	AccountID string    `json:"account_id,omitempty"`
	Name      string    `json:"account_name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	Status    Status    `json:"status"`
	OUID      string    `json:"ou_id,omitempty"`
	OUName    string    `json:"ou_name,omitempty"`
	Validated bool      `json:"validated"`

	// Retriable is set when a creation timeout left the request in flight.
	Retriable bool `json:"retriable,omitempty"`
	// OUMoveFailed flags the account-created-but-move-failed partial state.
	OUMoveFailed bool `json:"ou_move_failed,omitempty"`
	// CounterCommitted reports the single counter write; nil when the run
	// used an explicit email and never touched the counter.
	CounterCommitted *bool `json:"counter_committed,omitempty"`
	// UniqueNumber is the counter snapshot the email was derived from.
	UniqueNumber *int `json:"unique_number,omitempty"`

	FailureReason string   `json:"failure_reason,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// CreateRequest is the input to one creation run.
type CreateRequest struct {
	Name          string
	EmailOverride string
	OUName        string
	OUID          string
	Tags          map[string]string
	DryRun        bool
}

// CloseTarget selects the accounts a closure run operates on. Exactly one
// selector is set.
type CloseTarget struct {
	AccountID string
	Email     string
	All       bool
}

// CloseRequest is the input to one closure run.
type CloseRequest struct {
	Target CloseTarget
	DryRun bool
	NoWait bool
}

// ClosureOutcome is the per-account result of a closure run. One account's
// failure never aborts the remaining targets of a bulk run.
type ClosureOutcome struct {
	AccountID        string `json:"account_id"`
	Name             string `json:"account_name,omitempty"`
	Email            string `json:"email,omitempty"`
	PreviousStatus   string `json:"previous_status"`
	FinalStatus      string `json:"final_status"`
	RequestedClosure bool   `json:"requested_closure"`
	Error            string `json:"error,omitempty"`
}
