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

// referralRepository is the PostgreSQL implementation of repository.ReferralRepository
type referralRepository struct {
	db DBTX
}

// NewReferralRepository creates a new PostgreSQL referral repository
func NewReferralRepository(db DBTX) repository.ReferralRepository {
	return &referralRepository{db: db}
}

const referralColumns = `id, referral_id, affiliate_id, business_id, business_domain,
		target_url, source_url, user_agent, ip_address, utm_source, utm_medium,
		utm_campaign, conversion_status, conversion_value, clicked_at, created_at`

func (r *referralRepository) Create(ctx context.Context, ref *domain.Referral) (err error) {
	defer func(start time.Time) { metrics.ObserveQuery("referral_create", start, err) }(time.Now())

	query := `
		INSERT INTO referrals (
			referral_id, affiliate_id, business_id, business_domain, target_url,
			source_url, user_agent, ip_address, utm_source, utm_medium,
			utm_campaign, conversion_status, conversion_value, clicked_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		) RETURNING id
	`

	err = r.db.QueryRow(ctx, query,
		ref.ReferralID,
		ref.AffiliateID,
		ref.BusinessID,
		ref.BusinessDomain,
		ref.TargetURL,
		ref.SourceURL,
		ref.UserAgent,
		ref.IPAddress,
		ref.UTMSource,
		ref.UTMMedium,
		ref.UTMCampaign,
		string(ref.ConversionStatus),
		ref.ConversionValue,
		ref.ClickedAt,
		ref.CreatedAt,
	).Scan(&ref.ID)
	if err != nil {
		return fmt.Errorf("failed to create referral: %w", err)
	}
	return nil
}

func (r *referralRepository) List(ctx context.Context, filter repository.ListFilter) (refs []*domain.Referral, err error) {
	defer func(start time.Time) { metrics.ObserveQuery("referral_list", start, err) }(time.Now())

	var w where
	w.scope(filter, "", "clicked_at")
	query := `SELECT ` + referralColumns + ` FROM referrals` + w.String() +
		` ORDER BY clicked_at DESC` + w.limit(filter.Limit)

	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	defer rows.Close()

	refs = make([]*domain.Referral, 0)
	for rows.Next() {
		ref, err := scanReferral(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan referral: %w", err)
		}
		refs = append(refs, ref)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate referrals: %w", err)
	}
	return refs, nil
}

func (r *referralRepository) GetByReferralID(ctx context.Context, referralID string) (ref *domain.Referral, err error) {
	defer func(start time.Time) { metrics.ObserveQuery("referral_get", start, err) }(time.Now())

	query := `SELECT ` + referralColumns + ` FROM referrals WHERE referral_id = $1`

	ref, err = scanReferral(r.db.QueryRow(ctx, query, referralID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get referral: %w", err)
	}
	return ref, nil
}

func scanReferral(row pgx.Row) (*domain.Referral, error) {
	ref := &domain.Referral{}
	var status string
	err := row.Scan(
		&ref.ID,
		&ref.ReferralID,
		&ref.AffiliateID,
		&ref.BusinessID,
		&ref.BusinessDomain,
		&ref.TargetURL,
		&ref.SourceURL,
		&ref.UserAgent,
		&ref.IPAddress,
		&ref.UTMSource,
		&ref.UTMMedium,
		&ref.UTMCampaign,
		&status,
		&ref.ConversionValue,
		&ref.ClickedAt,
		&ref.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	ref.ConversionStatus = domain.ConversionStatus(status)
	return ref, nil
}
