package tenant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	tenantsrepo "github.com/medikube/platform/domains/tenants/be/repo"
	tenantsservice "github.com/medikube/platform/domains/tenants/be/service"
	"github.com/medikube/platform/platform/go/persistence"
)

// Command groups tenant registry management.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants (create, list, deactivate)",
	}

	cmd.AddCommand(createCommand())
	cmd.AddCommand(listCommand())
	cmd.AddCommand(deactivateCommand())
	return cmd
}

func newService(ctx context.Context, databaseURL string) (*tenantsservice.Service, func(), error) {
	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
	if err != nil {
		return nil, nil, fmt.Errorf("init pool: %w", err)
	}

	store, err := persistence.NewTenantStore(pool)
	if err != nil {
		persistence.ClosePool(pool)
		return nil, nil, fmt.Errorf("init tenant store: %w", err)
	}

	cleanup := func() { persistence.ClosePool(pool) }
	return tenantsservice.New(tenantsrepo.NewPostgresRepository(store)), cleanup, nil
}

func createCommand() *cobra.Command {
	var (
		databaseURL string
		name        string
		domain      string
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Register a new tenant and seed its roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			tenantStore, err := persistence.NewTenantStore(pool)
			if err != nil {
				return fmt.Errorf("init tenant store: %w", err)
			}
			userStore, err := persistence.NewUserStore(pool)
			if err != nil {
				return fmt.Errorf("init user store: %w", err)
			}

			svc := tenantsservice.New(tenantsrepo.NewPostgresRepository(tenantStore))

			input := tenantsservice.CreateInput{Name: name}
			if domain != "" {
				input.Domain = &domain
			}

			created, err := svc.Create(ctx, input)
			if err != nil {
				return fmt.Errorf("create tenant: %w", err)
			}

			if err := seedRoles(ctx, userStore, created.ID); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Tenant created: %s (%s), roles seeded\n", created.Name, created.ID)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().StringVar(&name, "name", "", "Tenant name (unique)")
	c.Flags().StringVar(&domain, "domain", "", "Domain routed to this tenant (optional)")

	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("name")

	return c
}

// seedRoles pre-creates the three tenant-scoped roles so admins can assign
// them right away. Get-or-create keeps the command idempotent; role rows are
// also created lazily on first use elsewhere.
func seedRoles(ctx context.Context, store *persistence.UserStore, tenantID uuid.UUID) error {
	for role, description := range map[string]string{
		"admin":  "Full administrative access within the tenant",
		"expert": "Elevated domain access within the tenant",
		"user":   "Default role for registered users",
	} {
		if _, err := store.GetOrCreateRole(ctx, tenantID, role, description); err != nil {
			return fmt.Errorf("seed role %s: %w", role, err)
		}
	}
	return nil
}

func listCommand() *cobra.Command {
	var databaseURL string

	c := &cobra.Command{
		Use:   "list",
		Short: "List registered tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			svc, cleanup, err := newService(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer cleanup()

			tenants, err := svc.List(ctx)
			if err != nil {
				return fmt.Errorf("list tenants: %w", err)
			}

			for _, t := range tenants {
				domain := "-"
				if t.Domain != nil {
					domain = *t.Domain
				}
				status := "active"
				if !t.IsActive {
					status = "inactive"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", t.ID, t.Name, domain, status)
			}
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	_ = c.MarkFlagRequired("database-url")

	return c
}

func deactivateCommand() *cobra.Command {
	var (
		databaseURL string
		tenantID    string
	)

	c := &cobra.Command{
		Use:   "deactivate",
		Short: "Soft-disable a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			id, err := uuid.Parse(tenantID)
			if err != nil {
				return fmt.Errorf("invalid tenant id: %w", err)
			}

			svc, cleanup, err := newService(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.Deactivate(ctx, id); err != nil {
				return fmt.Errorf("deactivate tenant: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Tenant %s deactivated\n", id)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().StringVar(&tenantID, "tenant-id", "", "Tenant UUID")

	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("tenant-id")

	return c
}
