package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dzekuza/pav4-sub004/internal/domain"
	"github.com/dzekuza/pav4-sub004/internal/metrics"
	"github.com/dzekuza/pav4-sub004/internal/repository"

	"github.com/jackc/pgx/v5"
)

// businessRepository is the PostgreSQL implementation of repository.BusinessRepository
type businessRepository struct {
	db DBTX
}

// NewBusinessRepository creates a new PostgreSQL business repository
func NewBusinessRepository(db DBTX) repository.BusinessRepository {
	return &businessRepository{db: db}
}

const businessColumns = `id, domain, shop_domain, name, created_at`

// GetByDomain matches either the registered domain or the storefront domain.
// The oldest business wins when both columns collide.
func (r *businessRepository) GetByDomain(ctx context.Context, host string) (b *domain.Business, err error) {
	defer func(start time.Time) { metrics.ObserveQuery("business_get_by_domain", start, err) }(time.Now())

	query := `SELECT ` + businessColumns + `
		FROM businesses
		WHERE domain = $1 OR shop_domain = $1
		ORDER BY created_at ASC
		LIMIT 1`

	b, err = scanBusiness(r.db.QueryRow(ctx, query, domain.NormalizeDomain(host)))
	if err != nil {
		return nil, fmt.Errorf("failed to get business by domain: %w", err)
	}
	return b, nil
}

func (r *businessRepository) GetByID(ctx context.Context, id string) (b *domain.Business, err error) {
	defer func(start time.Time) { metrics.ObserveQuery("business_get_by_id", start, err) }(time.Now())

	query := `SELECT ` + businessColumns + ` FROM businesses WHERE id = $1`

	b, err = scanBusiness(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get business: %w", err)
	}
	return b, nil
}

func (r *businessRepository) Create(ctx context.Context, b *domain.Business) (err error) {
	defer func(start time.Time) { metrics.ObserveQuery("business_create", start, err) }(time.Now())

	if err = b.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO businesses (domain, shop_domain, name, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err = r.db.QueryRow(ctx, query,
		domain.NormalizeDomain(b.Domain),
		domain.NormalizeDomain(b.ShopDomain),
		b.Name,
		b.CreatedAt,
	).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("failed to create business: %w", err)
	}
	return nil
}

// scanBusiness maps pgx.ErrNoRows to a nil business.
func scanBusiness(row pgx.Row) (*domain.Business, error) {
	b := &domain.Business{}
	err := row.Scan(&b.ID, &b.Domain, &b.ShopDomain, &b.Name, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}
