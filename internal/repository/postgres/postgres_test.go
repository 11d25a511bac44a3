package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dzekuza/pav4-sub004/internal/domain"
	"github.com/dzekuza/pav4-sub004/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ctx       = context.Background()
	createdAt = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestMigrate_FreshDB(t *testing.T) {
	mock := newMock(t)
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)

	mock.ExpectExec("SELECT pg_advisory_lock").WithArgs(migrationLockID).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT filename FROM schema_migrations").
		WillReturnRows(pgxmock.NewRows([]string{"filename"}))
	for _, name := range names {
		mock.ExpectExec(".*").WillReturnResult(pgxmock.NewResult("EXEC", 0))
		mock.ExpectExec("INSERT INTO schema_migrations").
			WithArgs(name).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectExec("SELECT pg_advisory_unlock").WithArgs(migrationLockID).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	err = Migrate(ctx, mock, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_AllApplied(t *testing.T) {
	mock := newMock(t)
	names, err := migrationNames()
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{"filename"})
	for _, name := range names {
		rows.AddRow(name)
	}

	mock.ExpectExec("SELECT pg_advisory_lock").WithArgs(migrationLockID).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT filename FROM schema_migrations").WillReturnRows(rows)
	mock.ExpectExec("SELECT pg_advisory_unlock").WithArgs(migrationLockID).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	err = Migrate(ctx, mock, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_LockFailure(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("SELECT pg_advisory_lock").WithArgs(migrationLockID).WillReturnError(errors.New("connection refused"))

	err := Migrate(ctx, mock, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, err, "migration lock")
	assert.NoError(t, mock.ExpectationsWereMet())
}

var businessCols = []string{"id", "domain", "shop_domain", "name", "created_at"}

func TestBusinessRepository_GetByDomain(t *testing.T) {
	mock := newMock(t)
	repo := NewBusinessRepository(mock)

	mock.ExpectQuery("FROM businesses").
		WithArgs("shop.example.com").
		WillReturnRows(pgxmock.NewRows(businessCols).
			AddRow("b-1", "shop.example.com", "shop.myshopify.com", "Shop", createdAt))

	b, err := repo.GetByDomain(ctx, "WWW.Shop.Example.com")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "b-1", b.ID)
	assert.Equal(t, "shop.myshopify.com", b.ShopDomain)
	assert.Equal(t, createdAt, b.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBusinessRepository_GetByDomain_Miss(t *testing.T) {
	mock := newMock(t)
	repo := NewBusinessRepository(mock)

	mock.ExpectQuery("FROM businesses").
		WithArgs("unknown.example.com").
		WillReturnError(pgx.ErrNoRows)

	b, err := repo.GetByDomain(ctx, "unknown.example.com")
	assert.NoError(t, err)
	assert.Nil(t, b)
}

func TestBusinessRepository_GetByID_Error(t *testing.T) {
	mock := newMock(t)
	repo := NewBusinessRepository(mock)

	mock.ExpectQuery("FROM businesses WHERE id").
		WithArgs("b-1").
		WillReturnError(errors.New("timeout"))

	b, err := repo.GetByID(ctx, "b-1")
	assert.Nil(t, b)
	assert.ErrorContains(t, err, "failed to get business")
}

func TestBusinessRepository_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewBusinessRepository(mock)

	b := &domain.Business{Domain: "www.Shop.example.com", Name: "Shop", CreatedAt: createdAt}

	mock.ExpectQuery("INSERT INTO businesses").
		WithArgs("shop.example.com", "", "Shop", createdAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("b-9"))

	require.NoError(t, repo.Create(ctx, b))
	assert.Equal(t, "b-9", b.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBusinessRepository_Create_EmptyDomain(t *testing.T) {
	mock := newMock(t)
	repo := NewBusinessRepository(mock)

	err := repo.Create(ctx, &domain.Business{Domain: "  "})
	assert.ErrorIs(t, err, domain.ErrEmptyDomain)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var referralCols = []string{
	"id", "referral_id", "affiliate_id", "business_id", "business_domain",
	"target_url", "source_url", "user_agent", "ip_address", "utm_source", "utm_medium",
	"utm_campaign", "conversion_status", "conversion_value", "clicked_at", "created_at",
}

func referralRow(rows *pgxmock.Rows, id, status string) *pgxmock.Rows {
	return rows.AddRow(id, "ref_aff1_1_abc123", "aff1", "b-1", "shop.example.com",
		"https://shop.example.com/p", "direct", "ua", "10.0.0.1",
		domain.ReferralUTMSource, domain.ReferralUTMMedium, domain.ReferralUTMCampaign,
		status, nil, createdAt, createdAt)
}

func TestReferralRepository_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewReferralRepository(mock)

	biz := &domain.Business{ID: "b-1", Domain: "shop.example.com"}
	ref := domain.NewReferral(biz, "ref_aff1_1_abc123", "", domain.ClickContext{
		AffiliateID: "aff1",
		TargetURL:   "https://shop.example.com/p",
		Timestamp:   createdAt,
	})

	mock.ExpectQuery("INSERT INTO referrals").
		WithArgs("ref_aff1_1_abc123", "aff1", "b-1", "shop.example.com", "https://shop.example.com/p",
			"direct", "", "", domain.ReferralUTMSource, domain.ReferralUTMMedium, domain.ReferralUTMCampaign,
			"pending", pgxmock.AnyArg(), createdAt, createdAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("r-1"))

	require.NoError(t, repo.Create(ctx, ref))
	assert.Equal(t, "r-1", ref.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferralRepository_List_Filtered(t *testing.T) {
	mock := newMock(t)
	repo := NewReferralRepository(mock)

	from := createdAt.Add(-time.Hour)
	rows := referralRow(pgxmock.NewRows(referralCols), "r-1", "converted")
	rows = referralRow(rows, "r-2", "pending")

	mock.ExpectQuery(`FROM referrals WHERE business_id = ANY\(\$1\) AND clicked_at >= \$2 ORDER BY clicked_at DESC LIMIT \$3`).
		WithArgs([]string{"b-1"}, from, defaultListLimit).
		WillReturnRows(rows)

	refs, err := repo.List(ctx, repository.ListFilter{BusinessIDs: []string{"b-1"}, From: &from})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, domain.ConversionConverted, refs[0].ConversionStatus)
	assert.True(t, refs[0].IsConverted())
	assert.Nil(t, refs[0].ConversionValue)
	assert.Equal(t, "r-2", refs[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferralRepository_List_QueryError(t *testing.T) {
	mock := newMock(t)
	repo := NewReferralRepository(mock)

	mock.ExpectQuery("FROM referrals").WithArgs(25).WillReturnError(errors.New("boom"))

	refs, err := repo.List(ctx, repository.ListFilter{Limit: 25})
	assert.Nil(t, refs)
	assert.ErrorContains(t, err, "failed to list referrals")
}

func TestReferralRepository_GetByReferralID_Miss(t *testing.T) {
	mock := newMock(t)
	repo := NewReferralRepository(mock)

	mock.ExpectQuery("WHERE referral_id").WithArgs("ref_x").WillReturnError(pgx.ErrNoRows)

	ref, err := repo.GetByReferralID(ctx, "ref_x")
	assert.NoError(t, err)
	assert.Nil(t, ref)
}

func TestOrderRepository_Upsert(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)

	o := &domain.Order{
		ID: "1001", BusinessID: "b-1", Name: "#1001", TotalPrice: "19.99", Currency: "EUR",
		FinancialStatus: "paid", SourceName: "web", CreatedAt: createdAt,
	}

	mock.ExpectExec("INSERT INTO orders .* ON CONFLICT \\(id\\) DO UPDATE").
		WithArgs("1001", "b-1", "#1001", "", "19.99", "EUR", "paid", "", "", "web", "", "", createdAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Upsert(ctx, o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_List(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)

	cols := []string{"id", "business_id", "name", "email", "total_price", "currency",
		"financial_status", "fulfillment_status", "source_url", "source_name",
		"source_identifier", "checkout_token", "created_at"}

	mock.ExpectQuery(`FROM orders WHERE business_id = ANY\(\$1\) ORDER BY created_at DESC LIMIT \$2`).
		WithArgs([]string{"b-1", "b-2"}, 10).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("1001", "b-1", "#1001", "", "19.99", "EUR", "paid", "", "", "web", "", "tok", createdAt))

	orders, err := repo.List(ctx, repository.ListFilter{BusinessIDs: []string{"b-1", "b-2"}, Limit: 10})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "tok", orders[0].CheckoutToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutRepository_UpsertAndList(t *testing.T) {
	mock := newMock(t)
	repo := NewCheckoutRepository(mock)

	c := &domain.Checkout{ID: "c-1", BusinessID: "b-1", Token: "tok", TotalPrice: "5.00", CreatedAt: createdAt}

	mock.ExpectExec("INSERT INTO checkouts").
		WithArgs("c-1", "b-1", "tok", "", "5.00", "", "", "", "", pgxmock.AnyArg(), createdAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.Upsert(ctx, c))

	cols := []string{"id", "business_id", "token", "email", "total_price", "currency",
		"source_url", "source_name", "source_identifier", "completed_at", "created_at"}
	mock.ExpectQuery(`FROM checkouts ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(defaultListLimit).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("c-1", "b-1", "tok", "", "5.00", "", "", "", "", nil, createdAt))

	checkouts, err := repo.List(ctx, repository.ListFilter{})
	require.NoError(t, err)
	require.Len(t, checkouts, 1)
	assert.False(t, checkouts[0].IsCompleted())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJourneyRepository_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewJourneyRepository(mock)

	e := &domain.JourneyEvent{
		SessionID:  "s1",
		EventType:  domain.EventPageView,
		PageURL:    "/home",
		Data:       map[string]any{"k": "v"},
		OccurredAt: createdAt,
	}

	mock.ExpectQuery("INSERT INTO journey_events").
		WithArgs("", "", "s1", "page_view", "", "", "", "/home", "", "", "", "", 0.0, 0.0, "",
			0.0, "", "", "", "", "", "", "", "", "", map[string]any{"k": "v"}, createdAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("e-1"))

	require.NoError(t, repo.Create(ctx, e))
	assert.Equal(t, "e-1", e.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJourneyRepository_List(t *testing.T) {
	mock := newMock(t)
	repo := NewJourneyRepository(mock)

	cols := append([]string{"id"}, journeyColumns...)
	cols = append(cols, "business_domain")

	mock.ExpectQuery(`LEFT JOIN referrals r ON r.referral_id = e.referral_id WHERE r.business_domain = \$1 AND e.session_id = \$2 ORDER BY e.occurred_at DESC LIMIT \$3`).
		WithArgs("shop.example.com", "s1", 50).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("e-1", "b-1", "ref_1", "s1", "purchase", "aff1", "u1", "", "/thanks", "", "",
				"", "", 0.0, 42.5, "", 0.0, "", "o-1", "ipick.io", "", "", "LT", "", "", "",
				map[string]any{"order_id": "o-1"}, createdAt, "shop.example.com"))

	events, err := repo.List(ctx, repository.JourneyFilter{
		ListFilter:     repository.ListFilter{Limit: 50},
		BusinessDomain: "www.shop.example.com",
		SessionID:      "s1",
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventPurchase, events[0].EventType)
	assert.Equal(t, 42.5, events[0].CartValue)
	assert.Equal(t, "shop.example.com", events[0].BusinessDomain)
	assert.Equal(t, "o-1", events[0].Data["order_id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
