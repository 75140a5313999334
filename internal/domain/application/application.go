package application

import (
	"fmt"
	"strings"
	"time"
)

// Status is the closed application lifecycle enum. Payment concerns end at
// StatusSubmitted; everything after is administrative review.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusSubmitted      Status = "submitted"
	StatusUnderReview    Status = "under_review"
	StatusShortlisted    Status = "shortlisted"
	StatusRejected       Status = "rejected"
	StatusAccepted       Status = "accepted"
)

// Application is one user's submission against one opportunity.
type Application struct {
	ID            int64
	UserID        int64
	OpportunityID int64
	ResumeURL     string
	LetterURL     string
	CoverLetter   string
	Status        Status
	// PaymentRef is the outstanding correlation token. Non-empty while a
	// payment attempt is in flight; cleared once the attempt resolves.
	PaymentRef string
	// ProviderRef is the provider's own id for the outstanding attempt
	// (Daraja CheckoutRequestID). Callbacks that omit our token resolve
	// through it.
	ProviderRef   string
	AmountPaid    int64 // whole currency units, recorded on confirmation
	TransactionID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// rank orders statuses for the never-regress rule. The three review outcomes
// share a tier.
func (s Status) rank() int {
	switch s {
	case StatusPendingPayment:
		return 0
	case StatusSubmitted:
		return 1
	case StatusUnderReview:
		return 2
	case StatusShortlisted, StatusRejected, StatusAccepted:
		return 3
	}
	return -1
}

// Valid reports whether s is a member of the closed enum.
func (s Status) Valid() bool { return s.rank() >= 0 }

// ParseStatus normalizes and validates a status supplied by an API caller.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

// CanWithdraw reports whether the owning user may delete the application.
// Once review has started the record is no longer the applicant's to remove.
func (a *Application) CanWithdraw() bool {
	return a.Status == StatusPendingPayment || a.Status == StatusSubmitted
}

// IsSettled reports whether payment has already been confirmed.
func (a *Application) IsSettled() bool {
	return a.Status != StatusPendingPayment
}

// CanEditCoverLetter reports whether the cover letter may still change.
// Edits are only allowed while payment is outstanding.
func (a *Application) CanEditCoverLetter() bool {
	return a.Status == StatusPendingPayment
}

// CanAdminSet reports whether an administrator may move the application to
// next. Administrators only ever advance the status, and never past or around
// the payment gate: an unpaid application leaves pending_payment solely via a
// verified payment event.
func (a *Application) CanAdminSet(next Status) bool {
	if !next.Valid() || a.Status == StatusPendingPayment {
		return false
	}
	return next.rank() > a.Status.rank()
}
