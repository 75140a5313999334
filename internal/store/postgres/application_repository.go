package postgres

import (
	"context"
	"database/sql"
	"errors"

	"attachly/internal/apperr"
	"attachly/internal/domain/application"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const applicationColumns = `id, user_id, opportunity_id, resume_url, letter_url, cover_letter,
	status, payment_ref, provider_ref, amount_paid, transaction_id, created_at, updated_at`

type applicationRepository struct {
	db *pgxpool.Pool
}

func NewApplicationRepository(db *pgxpool.Pool) *applicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) Create(ctx context.Context, a *application.Application) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO applications (user_id, opportunity_id, resume_url, letter_url, cover_letter, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING id, created_at, updated_at`,
		a.UserID, a.OpportunityID, a.ResumeURL, nullable(a.LetterURL), nullable(a.CoverLetter), string(a.Status),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (r *applicationRepository) FindByID(ctx context.Context, id int64) (*application.Application, error) {
	row := r.db.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)
	return scanApplication(row)
}

func (r *applicationRepository) FindByUserAndOpportunity(ctx context.Context, userID, opportunityID int64) (*application.Application, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE user_id = $1 AND opportunity_id = $2`, userID, opportunityID)
	return scanApplication(row)
}

func (r *applicationRepository) ReplaceDocuments(ctx context.Context, id int64, resumeURL, letterURL, coverLetter string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE applications
		SET resume_url = $1, letter_url = $2, cover_letter = $3, payment_ref = NULL, provider_ref = NULL, updated_at = now()
		WHERE id = $4`,
		resumeURL, nullable(letterURL), nullable(coverLetter), id)
	return err
}

func (r *applicationRepository) SetPaymentRef(ctx context.Context, id int64, ref string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE applications
		SET payment_ref = $1, provider_ref = NULL, updated_at = now()
		WHERE id = $2`, ref, id)
	return err
}

func (r *applicationRepository) SetProviderRef(ctx context.Context, id int64, providerRef string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE applications
		SET provider_ref = $1, updated_at = now()
		WHERE id = $2`, providerRef, id)
	return err
}

func (r *applicationRepository) FindByProviderRef(ctx context.Context, providerRef string) (*application.Application, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE provider_ref = $1`, providerRef)
	return scanApplication(row)
}

// ConfirmPayment is the idempotency pivot of the whole webhook path: the
// guard and the write are one statement, so two racing deliveries can never
// both observe pending_payment.
func (r *applicationRepository) ConfirmPayment(ctx context.Context, id int64, ref string, amount int64, transactionID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE applications
		SET status = $1, amount_paid = $2, transaction_id = $3, payment_ref = NULL, provider_ref = NULL, updated_at = now()
		WHERE id = $4 AND status = $5 AND payment_ref = $6`,
		string(application.StatusSubmitted), amount, transactionID,
		id, string(application.StatusPendingPayment), ref)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *applicationRepository) ClearPaymentRef(ctx context.Context, id int64, ref string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE applications
		SET payment_ref = NULL, provider_ref = NULL, updated_at = now()
		WHERE id = $1 AND status = $2 AND payment_ref = $3`,
		id, string(application.StatusPendingPayment), ref)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *applicationRepository) UpdateStatus(ctx context.Context, id int64, status application.Status) error {
	_, err := r.db.Exec(ctx, `
		UPDATE applications
		SET status = $1, updated_at = now()
		WHERE id = $2`, string(status), id)
	return err
}

func (r *applicationRepository) UpdateCoverLetter(ctx context.Context, id int64, coverLetter string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE applications
		SET cover_letter = $1, updated_at = now()
		WHERE id = $2`, nullable(coverLetter), id)
	return err
}

func (r *applicationRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM applications WHERE id = $1`, id)
	return err
}

func (r *applicationRepository) ListByUser(ctx context.Context, userID int64) ([]*application.Application, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanApplications(rows)
}

func (r *applicationRepository) ListByOpportunity(ctx context.Context, opportunityID int64) ([]*application.Application, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE opportunity_id = $1
		ORDER BY created_at DESC`, opportunityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanApplications(rows)
}

func scanApplication(row pgx.Row) (*application.Application, error) {
	var a application.Application
	var letterURL, coverLetter, paymentRef, providerRef, transactionID sql.NullString
	var amountPaid sql.NullInt64

	err := row.Scan(
		&a.ID, &a.UserID, &a.OpportunityID, &a.ResumeURL, &letterURL, &coverLetter,
		&a.Status, &paymentRef, &providerRef, &amountPaid, &transactionID, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "application not found")
	}
	if err != nil {
		return nil, err
	}

	a.LetterURL = letterURL.String
	a.CoverLetter = coverLetter.String
	a.PaymentRef = paymentRef.String
	a.ProviderRef = providerRef.String
	a.AmountPaid = amountPaid.Int64
	a.TransactionID = transactionID.String
	return &a, nil
}

func scanApplications(rows pgx.Rows) ([]*application.Application, error) {
	var apps []*application.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
