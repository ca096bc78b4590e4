package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// One-off maintenance tool: forfeits stakes stuck past their deadline when the
// background job was down for longer than the grace window.
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost, dbPort, dbUser, dbPassword, dbName)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	log.Println("Connected to database successfully")

	// Same grace window as the background forfeiture job
	graceHours := 24
	if v := os.Getenv("FORFEIT_GRACE_HOURS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			graceHours = parsed
		}
	}

	// Step 1: Forfeit expired unverified stakes
	result, err := db.Exec(`
		UPDATE stakes
		SET status = 'FORFEITED', settled_at = NOW(), updated_at = NOW()
		WHERE status IN ('JOINED', 'PROOF_SUBMITTED')
		AND deadline < NOW() - make_interval(hours => $1)
	`, graceHours)
	if err != nil {
		log.Fatalf("Failed to forfeit stakes: %v", err)
	}
	rows, _ := result.RowsAffected()
	fmt.Printf("🗑️  Forfeited %d expired stakes\n", rows)

	// Step 2: Reject join requests left pending on closed challenges
	result, err = db.Exec(`
		UPDATE participation_requests
		SET status = 'REJECTED', decided_at = NOW()
		WHERE status = 'PENDING'
		AND challenge_id IN (
			SELECT id FROM challenges WHERE deadline < NOW()
		)
	`)
	if err != nil {
		log.Printf("⚠️  Warning rejecting stale requests: %v", err)
	} else {
		rows, _ = result.RowsAffected()
		fmt.Printf("🗑️  Rejected %d stale join requests\n", rows)
	}

	fmt.Println("✅ Cleanup complete")
}
