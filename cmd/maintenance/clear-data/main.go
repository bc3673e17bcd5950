package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/eventlodge/accommodation-backend/internal/config"
	"github.com/eventlodge/accommodation-backend/internal/database"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Tables holding attendee activity. Inventory (facilities, rooms, beds,
// rates) is kept so an event can be re-run against the same catalog.
var activityTables = []string{
	"payment_audits",
	"payments",
	"allocations",
	"bookings",
}

func main() {
	var dbURLFlag, eventFlag string
	var all bool
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.StringVar(&eventFlag, "event", "", "only clear activity for this event id")
	flag.BoolVar(&all, "all", false, "clear activity for every event")
	flag.Parse()

	// Try loading .env from current working directory (optional)
	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}
	if (eventFlag == "") == !all {
		log.Fatal("exactly one of -event or -all is required")
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

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		log.Fatalf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	if all {
		fmt.Println("Connected to database. Clearing activity for all events...")
		stmts := []string{
			`TRUNCATE TABLE payment_audits, payments, allocations, bookings`,
			`UPDATE rooms SET available = TRUE, version = version + 1, updated_at = NOW() WHERE available = FALSE`,
			`UPDATE bed_spaces SET available = TRUE, version = version + 1, updated_at = NOW() WHERE available = FALSE`,
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				log.Fatalf("failed to clear data: %v", err)
			}
		}
	} else {
		eventID, err := uuid.Parse(eventFlag)
		if err != nil {
			log.Fatalf("invalid -event: %v", err)
		}
		fmt.Printf("Connected to database. Clearing activity for event %s...\n", eventID)
		stmts := []string{
			`DELETE FROM payment_audits WHERE payment_id IN (SELECT id FROM payments WHERE event_id = $1)`,
			`DELETE FROM payments WHERE event_id = $1`,
			`UPDATE allocations SET paired_with = NULL WHERE event_id = $1`,
			`DELETE FROM allocations WHERE event_id = $1`,
			`DELETE FROM bookings WHERE event_id = $1`,
			`UPDATE rooms r SET available = TRUE, version = r.version + 1, updated_at = NOW()
			 FROM facilities f WHERE r.facility_id = f.id AND f.event_id = $1 AND r.available = FALSE`,
			`UPDATE bed_spaces b SET available = TRUE, version = b.version + 1, updated_at = NOW()
			 FROM rooms r, facilities f WHERE b.room_id = r.id AND r.facility_id = f.id AND f.event_id = $1 AND b.available = FALSE`,
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt, eventID); err != nil {
				log.Fatalf("failed to clear data: %v", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		log.Fatalf("failed to commit: %v", err)
	}

	fmt.Println("Activity cleared and units released.")

	fmt.Println("Post-clear row counts:")
	for _, t := range activityTables {
		var count int
		if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", t)).Scan(&count); err != nil {
			fmt.Printf("  %s: error: %v\n", t, err)
			continue
		}
		fmt.Printf("  %s: %d\n", t, count)
	}
}
