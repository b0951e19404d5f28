package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	authrepo "github.com/medikube/platform/domains/auth/be/repo"
	authservice "github.com/medikube/platform/domains/auth/be/service"
	tenantsrepo "github.com/medikube/platform/domains/tenants/be/repo"
	tenantsservice "github.com/medikube/platform/domains/tenants/be/service"
	"github.com/medikube/platform/platform/go/persistence"
)

// Command groups bootstrap helpers (schema DDL, default tenant, first admin).
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bootstrap platform resources (schema, default tenant, admin user)",
		Long:  "Bootstrap platform resources: apply the core schema, create the default tenant and an initial admin user.",
	}

	cmd.AddCommand(platformCommand())
	return cmd
}

func platformCommand() *cobra.Command {
	var (
		databaseURL   string
		adminUsername string
		adminEmail    string
		adminPassword string
	)

	c := &cobra.Command{
		Use:   "platform",
		Short: "Apply core schema and create the default tenant with an admin user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			if err := persistence.BootstrapCoreSchema(ctx, pool); err != nil {
				return fmt.Errorf("apply core schema: %w", err)
			}

			tenantStore, err := persistence.NewTenantStore(pool)
			if err != nil {
				return fmt.Errorf("init tenant store: %w", err)
			}
			userStore, err := persistence.NewUserStore(pool)
			if err != nil {
				return fmt.Errorf("init user store: %w", err)
			}
			tokenStore, err := persistence.NewTokenStore(pool)
			if err != nil {
				return fmt.Errorf("init token store: %w", err)
			}
			accountStore, err := persistence.NewAccountStore(pool)
			if err != nil {
				return fmt.Errorf("init account store: %w", err)
			}

			tenantSvc := tenantsservice.New(tenantsrepo.NewPostgresRepository(tenantStore))
			authSvc := authservice.New(
				authrepo.NewPostgresUsers(userStore),
				authservice.NewTokenService(authrepo.NewPostgresTokens(tokenStore)),
				authrepo.NewPostgresAccounts(accountStore),
				authservice.NewBcryptHasher(),
			)

			tenantRec, err := tenantSvc.GetOrCreateDefault(ctx)
			if err != nil {
				return fmt.Errorf("create default tenant: %w", err)
			}

			summary, err := ensureAdminUser(ctx, authSvc, tenantRec.ID, adminUsername, adminEmail, adminPassword)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Bootstrap complete. Tenant: %s (%s) | Admin user: %s (%s)\n",
				tenantRec.Name, tenantRec.ID, summary.Username, summary.UserID)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().StringVar(&adminUsername, "admin-username", "admin", "Initial admin username")
	c.Flags().StringVar(&adminEmail, "admin-email", "", "Initial admin user email")
	c.Flags().StringVar(&adminPassword, "admin-password", "", "Initial admin password")

	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("admin-email")
	_ = c.MarkFlagRequired("admin-password")

	return c
}

// ensureAdminUser performs a check-or-create for the admin user inside the
// tenant and promotes it to the admin role.
func ensureAdminUser(ctx context.Context, authSvc *authservice.Service, tenantID uuid.UUID, username, email, password string) (authservice.UserSummary, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" {
		return authservice.UserSummary{}, fmt.Errorf("admin username and email are required")
	}

	summary, err := authSvc.Register(ctx, tenantID, authservice.RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		if !errors.Is(err, authservice.ErrConflict) {
			return authservice.UserSummary{}, fmt.Errorf("create admin user: %w", err)
		}
		user, lookupErr := authSvc.Authenticate(ctx, username, password)
		if lookupErr != nil {
			return authservice.UserSummary{}, fmt.Errorf("admin user exists but credentials do not match: %w", lookupErr)
		}
		summary, err = authSvc.Summary(ctx, user.ID)
		if err != nil {
			return authservice.UserSummary{}, fmt.Errorf("load admin user: %w", err)
		}
	}

	if err := authSvc.ChangeRole(ctx, tenantID, summary.UserID, authservice.RoleAdmin); err != nil {
		return authservice.UserSummary{}, fmt.Errorf("promote admin user: %w", err)
	}
	return authSvc.Summary(ctx, summary.UserID)
}
