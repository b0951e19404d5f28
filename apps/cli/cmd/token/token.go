package token

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	authrepo "github.com/medikube/platform/domains/auth/be/repo"
	authservice "github.com/medikube/platform/domains/auth/be/service"
	"github.com/medikube/platform/platform/go/persistence"
)

// Command groups bearer token maintenance.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Maintain bearer tokens",
	}

	cmd.AddCommand(sweepCommand())
	return cmd
}

func sweepCommand() *cobra.Command {
	var (
		databaseURL string
		tenantID    string
	)

	c := &cobra.Command{
		Use:   "sweep",
		Short: "Deactivate expired tokens",
		Long:  "Deactivate expired tokens in bulk, optionally scoped to one tenant. Validation already expires tokens lazily; this keeps the table tidy.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			var scope *uuid.UUID
			if tenantID != "" {
				id, err := uuid.Parse(tenantID)
				if err != nil {
					return fmt.Errorf("invalid tenant id: %w", err)
				}
				scope = &id
			}

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			store, err := persistence.NewTokenStore(pool)
			if err != nil {
				return fmt.Errorf("init token store: %w", err)
			}

			swept, err := authservice.NewTokenService(authrepo.NewPostgresTokens(store)).SweepExpired(ctx, scope)
			if err != nil {
				return fmt.Errorf("sweep tokens: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deactivated %d expired token(s)\n", swept)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().StringVar(&tenantID, "tenant-id", "", "Limit the sweep to one tenant (optional)")

	_ = c.MarkFlagRequired("database-url")

	return c
}
