// Package pg connects to PostgreSQL through a pgx connection pool and applies
// goose migrations from an embedded filesystem.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations, "migrations", cfg, log); err != nil {
//		return err
//	}
//
// WithTx wraps a function in a transaction, and the Is*Error helpers classify
// driver errors (no rows, unique and foreign-key violations).
package pg
