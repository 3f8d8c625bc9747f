// Command migrate applies the embedded schema migrations.
//
// Usage: migrate [up|down]  (default: up)
// The target database comes from SEATGUARD_DATABASE_URL.
package main

import (
	"log"
	"os"

	"seatguard/cmd/internal/db/migrate"
)

func main() {
	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}

	dsn := os.Getenv("SEATGUARD_DATABASE_URL")
	if err := migrate.Run(dsn, direction); err != nil {
		log.Fatal(err)
	}

	log.Printf("migrations %s: done", direction)
}
