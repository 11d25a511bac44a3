package main

import (
	"fmt"

	"github.com/dzekuza/pav4-sub004/internal/domain"
	"github.com/dzekuza/pav4-sub004/internal/repository/postgres"
	redisRepo "github.com/dzekuza/pav4-sub004/internal/repository/redis"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations",
	Long:  "Applies all pending SQL migrations in lexicographic order. Already applied files are skipped.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := postgres.Migrate(ctx, pool, appLog.Logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}

		appLog.Info("all migrations applied successfully")
		return nil
	},
}

var businessCmd = &cobra.Command{
	Use:   "business",
	Short: "Manage registered businesses",
}

var businessAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a business so referrals and webhooks can be attributed to it",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		host, _ := cmd.Flags().GetString("domain")
		shopDomain, _ := cmd.Flags().GetString("shop-domain")
		name, _ := cmd.Flags().GetString("name")

		b := domain.NewBusiness(host, shopDomain, name)
		b.CreatedAt = b.CreatedAt.UTC()
		if err := b.Validate(); err != nil {
			return err
		}

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := postgres.NewBusinessRepository(pool).Create(ctx, b); err != nil {
			return err
		}

		// A cached miss for either hostname would hide the new business.
		if cfg.Redis.Enabled {
			client, err := redisRepo.InitRedis(cfg.Redis.RedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				appLog.Warn("redis unavailable, cache not invalidated", "error", err)
			} else {
				defer client.Close() //nolint:errcheck
				cache := redisRepo.NewBusinessCache(client, cfg.Redis.CacheTTL)
				for _, h := range []string{b.Domain, b.ShopDomain} {
					if h == "" {
						continue
					}
					if err := cache.DeleteBusiness(ctx, h); err != nil {
						appLog.Warn("cache invalidation failed", "host", h, "error", err)
					}
				}
			}
		}

		appLog.Info("business registered", "id", b.ID, "domain", b.Domain)
		return printJSON(cmd.OutOrStdout(), b)
	},
}

func init() {
	businessAddCmd.Flags().String("domain", "", "registered domain, e.g. shop.example.com (required)")
	businessAddCmd.Flags().String("shop-domain", "", "platform storefront domain, e.g. shop.myshopify.com")
	businessAddCmd.Flags().String("name", "", "display name")
	_ = businessAddCmd.MarkFlagRequired("domain")

	businessCmd.AddCommand(businessAddCmd)
	rootCmd.AddCommand(migrateCmd, businessCmd)
}
