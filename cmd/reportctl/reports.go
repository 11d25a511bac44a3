package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dzekuza/pav4-sub004/internal/domain"
	"github.com/dzekuza/pav4-sub004/internal/repository/postgres"
	"github.com/dzekuza/pav4-sub004/internal/service"
	"github.com/dzekuza/pav4-sub004/pkg/validator"

	"github.com/spf13/cobra"
)

// -- orders --

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Classify a business's orders as affiliate or direct",
	Example: "  reportctl orders --business-domain shop.example.com --start-date 2025-03-01\n" +
		"  reportctl orders --business-domain shop.example.com --limit 250",
	RunE: func(cmd *cobra.Command, _ []string) error {
		q, err := queryFromFlags(cmd)
		if err != nil {
			return err
		}

		return withAnalytics(cmd.Context(), func(svc *service.AnalyticsService) error {
			resp, err := svc.OrderAnalytics(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("orders report: %w", err)
			}
			return printEnvelope(cmd, resp, resp.Success, resp.Error)
		})
	},
}

// -- journey --

var journeyCmd = &cobra.Command{
	Use:   "journey",
	Short: "Summarize tracked customer journeys for a business",
	RunE: func(cmd *cobra.Command, _ []string) error {
		q, err := queryFromFlags(cmd)
		if err != nil {
			return err
		}
		q.SessionID, _ = cmd.Flags().GetString("session-id")
		q.UTMSource, _ = cmd.Flags().GetString("utm-source")
		q.EventType, _ = cmd.Flags().GetString("event-type")

		return withAnalytics(cmd.Context(), func(svc *service.AnalyticsService) error {
			resp, err := svc.JourneyAnalytics(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("journey report: %w", err)
			}
			return printEnvelope(cmd, resp, resp.Success, resp.Error)
		})
	},
}

// -- checkout-debug --

var checkoutDebugCmd = &cobra.Command{
	Use:   "checkout-debug <business-id>",
	Short: "Inspect recent checkouts, orders and referrals of one business",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAnalytics(cmd.Context(), func(svc *service.AnalyticsService) error {
			report, err := svc.CheckoutDebug(cmd.Context(), args[0])
			if errors.Is(err, domain.ErrBusinessNotFound) {
				return fmt.Errorf("business %q: %w", args[0], err)
			}
			if err != nil {
				return fmt.Errorf("checkout debug: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), report)
		})
	},
}

func init() {
	addReportFlags(ordersCmd)
	addReportFlags(journeyCmd)
	journeyCmd.Flags().String("session-id", "", "only events of this session")
	journeyCmd.Flags().String("utm-source", "", "only events with this utm_source")
	journeyCmd.Flags().String("event-type", "", "only events of this type")

	rootCmd.AddCommand(ordersCmd, journeyCmd, checkoutDebugCmd)
}

func addReportFlags(c *cobra.Command) {
	c.Flags().String("business-domain", "", "storefront or registered domain; empty reports across all businesses")
	c.Flags().String("start-date", "", "lower bound, RFC 3339 or YYYY-MM-DD")
	c.Flags().String("end-date", "", "upper bound, RFC 3339 or YYYY-MM-DD")
	c.Flags().String("limit", "", fmt.Sprintf("maximum rows to load (1..%d)", validator.MaxLimit))
}

// queryFromFlags validates the shared report flags the same way the HTTP
// handlers validate query parameters.
func queryFromFlags(cmd *cobra.Command) (service.AnalyticsQuery, error) {
	var q service.AnalyticsQuery
	q.BusinessDomain, _ = cmd.Flags().GetString("business-domain")

	start, _ := cmd.Flags().GetString("start-date")
	from, err := validator.ParseDate(start)
	if err != nil {
		return q, fmt.Errorf("--start-date: %w", err)
	}
	end, _ := cmd.Flags().GetString("end-date")
	to, err := validator.ParseDate(end)
	if err != nil {
		return q, fmt.Errorf("--end-date: %w", err)
	}
	rawLimit, _ := cmd.Flags().GetString("limit")
	limit, err := validator.ParseLimit(rawLimit, 0)
	if err != nil {
		return q, fmt.Errorf("--limit: %w", err)
	}

	q.From = from
	q.To = to
	q.Limit = limit
	return q, nil
}

// withAnalytics builds an AnalyticsService over a fresh pool. The business
// cache is skipped; reports always read Postgres directly.
func withAnalytics(ctx context.Context, fn func(*service.AnalyticsService) error) error {
	pool, err := openPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	resolver := service.NewBusinessResolver(postgres.NewBusinessRepository(pool), nil, appLog)
	svc := service.NewAnalyticsService(
		resolver,
		postgres.NewOrderRepository(pool),
		postgres.NewReferralRepository(pool),
		postgres.NewCheckoutRepository(pool),
		postgres.NewJourneyRepository(pool),
		appLog,
	)
	return fn(svc)
}

// printEnvelope writes the envelope and turns an unsuccessful one into a
// non-zero exit.
func printEnvelope(cmd *cobra.Command, v any, success bool, message string) error {
	if err := printJSON(cmd.OutOrStdout(), v); err != nil {
		return err
	}
	if !success {
		return errors.New(message)
	}
	return nil
}
