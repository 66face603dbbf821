package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/opportunity-finder/internal/config"
	"github.com/david/opportunity-finder/internal/db"
	"github.com/david/opportunity-finder/internal/ingest"
	"github.com/david/opportunity-finder/internal/logger"
	"github.com/david/opportunity-finder/internal/query"
)

type fileList []string

func (f *fileList) String() string     { return strings.Join(*f, ",") }
func (f *fileList) Set(v string) error { *f = append(*f, v); return nil }

func main() {
	var files fileList
	sourceID := flag.String("source", "", "Registry source to re-ingest (e.g. urf)")
	all := flag.Bool("all", false, "Ingest every active source")
	flag.Var(&files, "file", "Raw batch file; repeatable. Rebuilds the whole snapshot from the given files")
	flag.Parse()

	modes := 0
	for _, set := range []bool{*sourceID != "", *all, len(files) > 0} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		log.Fatal("Provide exactly one of -source, -all or -file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	appLog, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: true})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}

	err = run(cfg, appLog, *sourceID, *all, files)
	appLog.Sync()
	if err != nil {
		log.Fatal(err)
	}
}

func run(cfg *config.Config, appLog logger.Logger, sourceID string, all bool, files []string) error {
	ctx := context.Background()
	store, closeStore, err := db.OpenStore(ctx, cfg, appLog)
	if err != nil {
		return err
	}
	defer closeStore()

	registry, err := ingest.LoadRegistry(cfg.RegistryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	overrides, err := ingest.LoadOverrides(cfg.OverridesPath)
	if err != nil {
		return fmt.Errorf("failed to load overrides: %w", err)
	}
	pipeline := ingest.NewPipeline(store, registry, overrides, appLog)
	pipeline.Now = cfg.Now

	var result ingest.RunResult
	switch {
	case sourceID != "":
		result, err = pipeline.IngestSource(ctx, sourceID)
	case all:
		result, err = pipeline.IngestAll(ctx)
	default:
		batches := make([]ingest.Batch, 0, len(files))
		for _, path := range files {
			label := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			b, lerr := ingest.LoadBatch(label, path)
			if lerr != nil {
				return lerr
			}
			batches = append(batches, b)
		}
		result, err = pipeline.Run(ctx, batches...)
	}

	printBatches(result)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	printSummary(query.Summarize(result.Opportunities, cfg.Now()))
	return nil
}

func printBatches(result ingest.RunResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Source", "Read", "Accepted", "Rejected", "Load Error"})
	for _, b := range result.Batches {
		t.AppendRow(table.Row{b.Source, b.Read, b.Accepted, b.Rejected, b.LoadError})
	}
	t.AppendFooter(table.Row{"Kept", result.Kept, "Total", result.Total, fmt.Sprintf("overrides %d/%d", result.Overrides.Applied, result.Overrides.Deleted)})
	t.Render()
}

func printSummary(s query.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Total", "Open", "Closed", "Dated", "Rolling", "No Deadline"})
	t.AppendRow(table.Row{s.Total, s.Open, s.Closed, s.WithDeadline, s.Rolling, s.NoDeadline})
	t.Render()

	src := table.NewWriter()
	src.SetOutputMirror(os.Stdout)
	src.AppendHeader(table.Row{"Source", "Opportunities"})
	for _, fc := range s.BySource {
		src.AppendRow(table.Row{fc.Value, fc.Count})
	}
	src.Render()
}
