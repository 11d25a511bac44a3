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

// orderRepository stores order snapshots received from storefront webhooks
type orderRepository struct {
	db DBTX
}

// NewOrderRepository creates a new PostgreSQL order repository
func NewOrderRepository(db DBTX) repository.OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `id, business_id, name, email, total_price, currency,
		financial_status, fulfillment_status, source_url, source_name,
		source_identifier, checkout_token, created_at`

// Upsert keeps the first created_at and refreshes every other field.
func (r *orderRepository) Upsert(ctx context.Context, o *domain.Order) (err error) {
	defer func(start time.Time) { metrics.ObserveQuery("order_upsert", start, err) }(time.Now())

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			business_id        = EXCLUDED.business_id,
			name               = EXCLUDED.name,
			email              = EXCLUDED.email,
			total_price        = EXCLUDED.total_price,
			currency           = EXCLUDED.currency,
			financial_status   = EXCLUDED.financial_status,
			fulfillment_status = EXCLUDED.fulfillment_status,
			source_url         = EXCLUDED.source_url,
			source_name        = EXCLUDED.source_name,
			source_identifier  = EXCLUDED.source_identifier,
			checkout_token     = EXCLUDED.checkout_token,
			updated_at         = now()
	`

	_, err = r.db.Exec(ctx, query,
		o.ID,
		o.BusinessID,
		o.Name,
		o.Email,
		o.TotalPrice,
		o.Currency,
		o.FinancialStatus,
		o.FulfillmentStatus,
		o.SourceURL,
		o.SourceName,
		o.SourceIdentifier,
		o.CheckoutToken,
		o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert order %s: %w", o.ID, err)
	}
	return nil
}

func (r *orderRepository) List(ctx context.Context, filter repository.ListFilter) (orders []*domain.Order, err error) {
	defer func(start time.Time) { metrics.ObserveQuery("order_list", start, err) }(time.Now())

	var w where
	w.scope(filter, "", "created_at")
	query := `SELECT ` + orderColumns + ` FROM orders` + w.String() +
		` ORDER BY created_at DESC` + w.limit(filter.Limit)

	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders = make([]*domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	o := &domain.Order{}
	err := row.Scan(
		&o.ID,
		&o.BusinessID,
		&o.Name,
		&o.Email,
		&o.TotalPrice,
		&o.Currency,
		&o.FinancialStatus,
		&o.FulfillmentStatus,
		&o.SourceURL,
		&o.SourceName,
		&o.SourceIdentifier,
		&o.CheckoutToken,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}
