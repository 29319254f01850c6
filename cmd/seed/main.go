package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/onlymatt43/ONLY-ACCESS/internal/config"
	pg "github.com/onlymatt43/ONLY-ACCESS/internal/infra/db/postgres"
	"github.com/onlymatt43/ONLY-ACCESS/internal/infra/logging"
	"github.com/onlymatt43/ONLY-ACCESS/internal/infra/store/jsonfile"
	"github.com/onlymatt43/ONLY-ACCESS/internal/usecase"
)

// seed registers a demo site and issues one batch of codes against it,
// printing the plaintexts. Handy for a fresh install or a local run.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	site := flag.String("site", "demo", "site title to register")
	iframe := flag.String("iframe", "https://player.example/embed", "iframe URL for the site")
	count := flag.Int("count", 5, "number of codes to issue")
	duration := flag.Int("duration", 60, "code validity in minutes")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger := logging.New(cfg.Log, true)

	var issueUC usecase.IssueUseCase
	var siteUC usecase.SiteUseCase
	if cfg.Database.URL != "" {
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		if err := pg.EnsureSchema(ctx, pool); err != nil {
			log.Fatalf("postgres schema: %v", err)
		}
		repo := pg.NewAccessRepo(pool)
		issueUC = usecase.NewIssueUseCase(repo, logger)
		siteUC = usecase.NewSiteUseCase(repo, logger)
	} else {
		store, err := jsonfile.Open(cfg.Store.Path, logger)
		if err != nil {
			log.Fatalf("store: %v", err)
		}
		issueUC = usecase.NewIssueUseCase(store, logger)
		siteUC = usecase.NewSiteUseCase(store, logger)
	}

	if _, err := siteUC.Create(ctx, *site, *iframe, ""); err != nil {
		log.Fatalf("create site %q: %v", *site, err)
	}

	batch, err := issueUC.IssueBatch(ctx, usecase.IssueRequest{
		Site:     *site,
		Label:    "seed",
		Count:    *count,
		Duration: *duration,
	})
	if err != nil {
		log.Fatalf("issue batch: %v", err)
	}

	fmt.Printf("family %s (%d codes, %d min each):\n", batch.FamilyID, len(batch.Codes), *duration)
	for _, code := range batch.Codes {
		fmt.Printf("  %s\n", code)
	}
	fmt.Println("Seeding complete.")
}
