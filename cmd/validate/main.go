package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"cmsig/adapters/excel"
	"cmsig/adapters/postgres"
	"cmsig/adapters/report"
	"cmsig/app"
	"cmsig/domain/signal"
	"cmsig/domain/validation"
	"cmsig/internal/config"
	"cmsig/internal/testkit"
)

func main() {
	var (
		inputPath  = flag.String("input", "", "JSON file of site observations; falls back to DATABASE_URL")
		demo       = flag.Bool("demo", false, "run against a deterministic synthetic store")
		seed       = flag.Int64("seed", 42, "seed for -demo")
		sites      = flag.Int("sites", 200, "site count for -demo")
		excelPath  = flag.String("excel", "", "write the report workbook to this path")
		stopOnErr  = flag.Bool("stop-on-error", false, "halt the pipeline on the first failed stage")
		skipSig    = flag.Bool("skip-significance", false, "skip significance testing")
		debugMode  = flag.Bool("debug", false, "log per-stage progress")
		renderHTML = flag.Bool("html", false, "emit HTML instead of markdown")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appCfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, err := loadStore(*inputPath, *demo, *seed, *sites, appCfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to load observations: %v", err)
	}

	opts := signal.AnalysisOptions{
		MinOccurrences:    appCfg.Analysis.MinOccurrences,
		IncludeExamples:   appCfg.Analysis.IncludeExamples,
		MaxExamples:       appCfg.Analysis.MaxExamples,
		SemanticFiltering: appCfg.Analysis.SemanticFiltering,
	}
	cfg := validation.DefaultConfig()
	cfg.StopOnError = *stopOnErr
	cfg.SkipSignificanceTesting = *skipSig
	cfg.DebugMode = *debugMode || appCfg.Analysis.DebugMode

	result, err := app.NewAnalysisService().Run(context.Background(), store, opts, cfg)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	renderer := report.NewMarkdownRenderer()
	var rendered []byte
	if *renderHTML {
		rendered, err = renderer.RenderHTML(result.Report, result.Correlations, result.Patterns)
	} else {
		rendered, err = renderer.Render(result.Report, result.Correlations, result.Patterns)
	}
	if err != nil {
		log.Fatalf("Failed to render report: %v", err)
	}
	fmt.Print(string(rendered))

	if *excelPath != "" {
		writer := excel.NewReportWriter()
		if err := writer.Write(*excelPath, result.Report, result.Correlations, result.Patterns); err != nil {
			log.Fatalf("Failed to write workbook: %v", err)
		}
		log.Printf("Report workbook written to %s", *excelPath)
	}

	if !result.Report.OverallPassed {
		os.Exit(1)
	}
}

func loadStore(inputPath string, demo bool, seed int64, sites int, databaseURL string) (*signal.Store, error) {
	if demo {
		cfg := testkit.DefaultConfig()
		cfg.Seed = seed
		cfg.Sites = sites
		return testkit.Generate(cfg), nil
	}

	if inputPath != "" {
		data, err := os.ReadFile(inputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", inputPath, err)
		}
		var observations []signal.SiteObservation
		if err := json.Unmarshal(data, &observations); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", inputPath, err)
		}
		return signal.NewStore(observations), nil
	}

	if databaseURL != "" {
		db, err := sqlx.Connect("postgres", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		return postgres.NewObservationRepository(db).LoadStore(context.Background())
	}

	return nil, fmt.Errorf("provide -input, -demo, or DATABASE_URL")
}
