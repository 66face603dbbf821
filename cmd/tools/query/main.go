package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/david/opportunity-finder/internal/config"
	"github.com/david/opportunity-finder/internal/db"
	"github.com/david/opportunity-finder/internal/logger"
	"github.com/david/opportunity-finder/internal/models"
	"github.com/david/opportunity-finder/internal/query"
)

func main() {
	status := flag.String("status", "open", "Comma-separated statuses, or 'all'")
	q := flag.String("q", "", "Free-text search")
	sortMode := flag.String("sort", string(query.SortDeadline), "deadline, deadline-desc or name")
	page := flag.Int("page", 1, "Page number")
	pageSize := flag.Int("page-size", 0, "Results per page (defaults to PAGE_SIZE)")
	tagFlags := make(map[models.Category]*string, len(models.Categories))
	for _, c := range models.Categories {
		tagFlags[c] = flag.String(string(c), "", fmt.Sprintf("Comma-separated %s tags", c))
	}
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()
	store, closeStore, err := db.OpenStore(ctx, cfg, logger.NewNop())
	if err != nil {
		log.Fatal(err)
	}
	defer closeStore()

	opps, err := store.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load snapshot: %v", err)
	}

	st := query.NewState()
	st.PageSize = cfg.PageSize
	if *pageSize > 0 {
		st.PageSize = *pageSize
	}
	st.Filters.Status = nil
	if !strings.EqualFold(strings.TrimSpace(*status), "all") {
		for _, s := range strings.Split(*status, ",") {
			if s = strings.TrimSpace(s); s != "" {
				st = st.ToggleStatus(models.Status(strings.ToLower(s)))
			}
		}
	}
	for c, v := range tagFlags {
		if strings.TrimSpace(*v) != "" {
			st = st.WithTags(c, strings.Split(*v, ",")...)
		}
	}
	st = st.WithText(*q).WithSort(query.ParseSortMode(*sortMode)).WithPage(*page)

	result := query.Run(opps, st, cfg.Now())

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Name", "Source", "Status", "Urgency", "Deadline"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMax: 60},
		{Number: 5, Align: text.AlignRight},
	})
	for _, v := range result.Items {
		t.AppendRow(table.Row{v.Name, v.Source, v.Status, v.Urgency, v.DeadlinePhrase})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("page %d/%d", result.Page, result.TotalPages),
		"", "",
		fmt.Sprintf("%d matched", result.TotalMatched),
		fmt.Sprintf("%d total", result.TotalOverall),
	})
	t.Render()
}
