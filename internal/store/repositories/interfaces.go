package repositories

import (
	"context"

	"attachly/internal/domain/application"
	"attachly/internal/domain/opportunity"
	"attachly/internal/domain/user"
)

// ApplicationRepository defines the contract for application data access.
//
// ConfirmPayment and ClearPaymentRef are single conditional updates: the
// status/reference guard and the write happen in one statement, never as a
// separate read followed by a write. Two concurrent webhook deliveries racing
// on the same application must resolve to exactly one confirmation.
type ApplicationRepository interface {
	Create(ctx context.Context, app *application.Application) error
	FindByID(ctx context.Context, id int64) (*application.Application, error)
	// FindByUserAndOpportunity returns the user's live application for an
	// opportunity, or a not-found error.
	FindByUserAndOpportunity(ctx context.Context, userID, opportunityID int64) (*application.Application, error)
	// ReplaceDocuments overwrites the uploaded documents and cover letter of
	// an application being reused while still in pending_payment.
	ReplaceDocuments(ctx context.Context, id int64, resumeURL, letterURL, coverLetter string) error
	// SetPaymentRef opens a fresh payment attempt, dropping the provider
	// ref of any superseded one.
	SetPaymentRef(ctx context.Context, id int64, ref string) error
	// SetProviderRef records the provider's id for the outstanding attempt.
	SetProviderRef(ctx context.Context, id int64, providerRef string) error
	// FindByProviderRef resolves the application whose outstanding attempt
	// carries providerRef, or a not-found error.
	FindByProviderRef(ctx context.Context, providerRef string) (*application.Application, error)
	// ConfirmPayment performs the pending_payment -> submitted transition iff
	// the application still carries ref. Reports whether a row transitioned.
	ConfirmPayment(ctx context.Context, id int64, ref string, amount int64, transactionID string) (bool, error)
	// ClearPaymentRef resolves a failed attempt, clearing ref iff it is still
	// the outstanding one.
	ClearPaymentRef(ctx context.Context, id int64, ref string) (bool, error)
	UpdateStatus(ctx context.Context, id int64, status application.Status) error
	UpdateCoverLetter(ctx context.Context, id int64, coverLetter string) error
	Delete(ctx context.Context, id int64) error
	ListByUser(ctx context.Context, userID int64) ([]*application.Application, error)
	ListByOpportunity(ctx context.Context, opportunityID int64) ([]*application.Application, error)
}

// OpportunityRepository defines the contract for opportunity data access.
type OpportunityRepository interface {
	Create(ctx context.Context, opp *opportunity.Opportunity) error
	Update(ctx context.Context, opp *opportunity.Opportunity) error
	FindByID(ctx context.Context, id int64) (*opportunity.Opportunity, error)
	List(ctx context.Context, activeOnly bool) ([]*opportunity.Opportunity, error)
}

// UserRepository resolves bearer tokens to accounts.
type UserRepository interface {
	FindByTokenHash(ctx context.Context, tokenHash string) (*user.User, error)
}
