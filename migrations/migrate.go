package migrations

import (
	"database/sql"
	"embed"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/Shrey-Parekh/game-arena/logger"
)

//go:embed *.sql
var embedMigrations embed.FS

func Migrate(pgurl string) {
	migrationDB, err := sql.Open("pgx", pgurl)
	if err != nil {
		logger.Fatalf("open DB for migrations: %v", err)
	}

	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		logger.Fatalf("set goose dialect: %v", err)
	}

	if err := goose.Up(migrationDB, "."); err != nil {
		logger.Fatalf("run up migrations: %v", err)
	}

	if err := migrationDB.Close(); err != nil {
		logger.Fatalf("close migration db connection: %v", err)
	}
	logger.Infof("migrations applied")
}
