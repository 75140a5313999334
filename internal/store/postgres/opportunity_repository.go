package postgres

import (
	"context"
	"database/sql"
	"errors"

	"attachly/internal/apperr"
	"attachly/internal/domain/opportunity"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const opportunityColumns = `id, title, company, description, type, application_fee, deadline, active, created_at, updated_at`

type opportunityRepository struct {
	db *pgxpool.Pool
}

func NewOpportunityRepository(db *pgxpool.Pool) *opportunityRepository {
	return &opportunityRepository{db: db}
}

func (r *opportunityRepository) Create(ctx context.Context, o *opportunity.Opportunity) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO opportunities (title, company, description, type, application_fee, deadline, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING id, created_at, updated_at`,
		o.Title, o.Company, o.Description, string(o.Type), nullableInt(o.ApplicationFee), o.Deadline, o.Active,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

func (r *opportunityRepository) Update(ctx context.Context, o *opportunity.Opportunity) error {
	_, err := r.db.Exec(ctx, `
		UPDATE opportunities
		SET title = $1, company = $2, description = $3, type = $4, application_fee = $5,
		    deadline = $6, active = $7, updated_at = now()
		WHERE id = $8`,
		o.Title, o.Company, o.Description, string(o.Type), nullableInt(o.ApplicationFee), o.Deadline, o.Active, o.ID)
	return err
}

func (r *opportunityRepository) FindByID(ctx context.Context, id int64) (*opportunity.Opportunity, error) {
	row := r.db.QueryRow(ctx, `SELECT `+opportunityColumns+` FROM opportunities WHERE id = $1`, id)
	return scanOpportunity(row)
}

func (r *opportunityRepository) List(ctx context.Context, activeOnly bool) ([]*opportunity.Opportunity, error) {
	q := `SELECT ` + opportunityColumns + ` FROM opportunities ORDER BY created_at DESC`
	if activeOnly {
		q = `SELECT ` + opportunityColumns + ` FROM opportunities WHERE active ORDER BY created_at DESC`
	}
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var opps []*opportunity.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		opps = append(opps, o)
	}
	return opps, rows.Err()
}

func scanOpportunity(row pgx.Row) (*opportunity.Opportunity, error) {
	var o opportunity.Opportunity
	var fee sql.NullInt64

	err := row.Scan(&o.ID, &o.Title, &o.Company, &o.Description, &o.Type, &fee,
		&o.Deadline, &o.Active, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "opportunity not found")
	}
	if err != nil {
		return nil, err
	}
	o.ApplicationFee = fee.Int64
	return &o, nil
}

func nullableInt(v int64) *int64 {
	if v <= 0 {
		return nil
	}
	return &v
}
