package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/medikube/platform/database"
)

// BootstrapCoreSchema applies the platform DDL in a single transaction, in
// dependency order:
//  1. core/tenants.sql (tenants, roles)
//  2. core/users.sql (users, user_profiles, access_tokens)
//  3. core/accounts.sql (accounts)
//
// SQL is embedded at build time so binaries stay self-contained. Every
// statement is IF NOT EXISTS, so the helper is idempotent and intended for
// CLI bootstrap and tests.
func BootstrapCoreSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("bootstrap core schema: pool is required")
	}

	var statements []string
	statements = append(statements, splitStatements(sqlassets.TenantsSQL)...)
	statements = append(statements, splitStatements(sqlassets.UsersSQL)...)
	statements = append(statements, splitStatements(sqlassets.AccountsSQL)...)

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply ddl: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// splitStatements breaks an embedded SQL asset into individual statements.
// The DDL files keep one statement per semicolon and contain no procedural
// bodies, so a plain split is sufficient.
func splitStatements(blob string) []string {
	parts := strings.Split(blob, ";")
	statements := make([]string, 0, len(parts))
	for _, part := range parts {
		stmt := strings.TrimSpace(part)
		if stmt == "" {
			continue
		}
		statements = append(statements, stmt)
	}
	return statements
}
