package main

import (
	"context"
	"log"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/opportunity-finder/internal/config"
	"github.com/david/opportunity-finder/internal/db"
)

// verify_db prints per-source field coverage of the stored snapshot.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, `
		SELECT
			source,
			count(*),
			count(deadline),
			count(*) FILTER (WHERE description <> ''),
			count(*) FILTER (WHERE cardinality(tag_level) > 0)
		FROM opportunities
		GROUP BY source
		ORDER BY count(*) DESC, source
	`)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Source", "Total", "With Deadline", "With Description", "With Level"})
	for rows.Next() {
		var source string
		var total, withDeadline, withDesc, withLevel int
		if err := rows.Scan(&source, &total, &withDeadline, &withDesc, &withLevel); err != nil {
			log.Fatalf("Scan failed: %v", err)
		}
		t.AppendRow(table.Row{source, total, withDeadline, withDesc, withLevel})
	}
	if err := rows.Err(); err != nil {
		log.Fatal(err)
	}
	t.Render()
}
