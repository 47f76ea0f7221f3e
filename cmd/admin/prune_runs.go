package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Deletes validation runs older than the retention window. Host
// results go with them via the foreign key cascade.
func main() {
	days := flag.Int("days", 30, "delete runs older than this many days")
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set")
		os.Exit(1)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	res, err := db.Exec(
		`DELETE FROM validation_runs WHERE started_at < NOW() - $1 * INTERVAL '1 day'`,
		*days,
	)
	if err != nil {
		panic(err)
	}

	n, _ := res.RowsAffected()
	fmt.Printf("Pruned %d runs older than %d days\n", n, *days)
}
