package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dzekuza/pav4-sub004/internal/domain"
	"github.com/dzekuza/pav4-sub004/internal/metrics"
	"github.com/dzekuza/pav4-sub004/internal/repository"

	"github.com/jackc/pgx/v5"
)

type checkoutRepository struct {
	db DBTX
}

// NewCheckoutRepository creates a new PostgreSQL checkout repository
func NewCheckoutRepository(db DBTX) repository.CheckoutRepository {
	return &checkoutRepository{db: db}
}

const checkoutColumns = `id, business_id, token, email, total_price, currency,
		source_url, source_name, source_identifier, completed_at, created_at`

// Upsert never clears completed_at once a checkout has completed.
func (r *checkoutRepository) Upsert(ctx context.Context, c *domain.Checkout) (err error) {
	defer func(start time.Time) { metrics.ObserveQuery("checkout_upsert", start, err) }(time.Now())

	query := `
		INSERT INTO checkouts (` + checkoutColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			business_id       = EXCLUDED.business_id,
			token             = EXCLUDED.token,
			email             = EXCLUDED.email,
			total_price       = EXCLUDED.total_price,
			currency          = EXCLUDED.currency,
			source_url        = EXCLUDED.source_url,
			source_name       = EXCLUDED.source_name,
			source_identifier = EXCLUDED.source_identifier,
			completed_at      = COALESCE(EXCLUDED.completed_at, checkouts.completed_at),
			updated_at        = now()
	`

	_, err = r.db.Exec(ctx, query,
		c.ID,
		c.BusinessID,
		c.Token,
		c.Email,
		c.TotalPrice,
		c.Currency,
		c.SourceURL,
		c.SourceName,
		c.SourceIdentifier,
		c.CompletedAt,
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert checkout %s: %w", c.ID, err)
	}
	return nil
}

func (r *checkoutRepository) List(ctx context.Context, filter repository.ListFilter) (checkouts []*domain.Checkout, err error) {
	defer func(start time.Time) { metrics.ObserveQuery("checkout_list", start, err) }(time.Now())

	var w where
	w.scope(filter, "", "created_at")
	query := `SELECT ` + checkoutColumns + ` FROM checkouts` + w.String() +
		` ORDER BY created_at DESC` + w.limit(filter.Limit)

	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkouts: %w", err)
	}
	defer rows.Close()

	checkouts = make([]*domain.Checkout, 0)
	for rows.Next() {
		c, err := scanCheckout(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkout: %w", err)
		}
		checkouts = append(checkouts, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checkouts: %w", err)
	}
	return checkouts, nil
}

func scanCheckout(row pgx.Row) (*domain.Checkout, error) {
	c := &domain.Checkout{}
	err := row.Scan(
		&c.ID,
		&c.BusinessID,
		&c.Token,
		&c.Email,
		&c.TotalPrice,
		&c.Currency,
		&c.SourceURL,
		&c.SourceName,
		&c.SourceIdentifier,
		&c.CompletedAt,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}
