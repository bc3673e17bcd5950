package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/eventlodge/accommodation-backend/internal/config"
	"github.com/eventlodge/accommodation-backend/internal/database"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
)

func main() {
	var dbURLFlag, dir string
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.StringVar(&dir, "dir", "migrations", "directory holding the SQL migrations")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [flags] up|down|status")
		flag.PrintDefaults()
	}
	flag.Parse()

	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     2,
		MaxIdleConnections: 1,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("failed to set dialect: %v", err)
	}

	switch command {
	case "up":
		err = goose.Up(db.DB, dir)
	case "down":
		err = goose.Down(db.DB, dir)
	case "status":
		err = goose.Status(db.DB, dir)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("goose %s: %v", command, err)
	}

	fmt.Printf("migrate %s: done\n", command)
}
