// Command migrate applies the database schema. Usage:
//
//	migrate [up|down|status]
//
// The default command is "up".
package main

import (
	"database/sql"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"instacap/internal/db"
	"instacap/internal/infra"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	conn, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer conn.Close()

	goose.SetBaseFS(db.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		logger.Fatal().Err(err).Msg("failed to set dialect")
	}

	switch command {
	case "up":
		err = goose.Up(conn, "migrations")
	case "down":
		err = goose.Down(conn, "migrations")
	case "status":
		err = goose.Status(conn, "migrations")
	default:
		logger.Fatal().Str("command", command).Msg("unknown command, want up, down or status")
	}
	if err != nil {
		logger.Fatal().Err(err).Str("command", command).Msg("migration failed")
	}
	logger.Info().Str("command", command).Msg("migration complete")
}
