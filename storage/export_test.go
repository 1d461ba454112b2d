package storage

import "github.com/jackc/pgx/v5/pgxpool"

// Pool exposes the connection pool to the package tests for seeding.
func (repo *PostgresRepo) Pool() *pgxpool.Pool {
	return repo.pool
}
