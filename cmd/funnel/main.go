package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/Joshua-M-Schmidt/funnel/internal/analysis"
	"github.com/Joshua-M-Schmidt/funnel/internal/config"
	"github.com/Joshua-M-Schmidt/funnel/internal/content"
	"github.com/Joshua-M-Schmidt/funnel/internal/fetcher"
	"github.com/Joshua-M-Schmidt/funnel/internal/processor"
	"github.com/Joshua-M-Schmidt/funnel/internal/server"
	"github.com/Joshua-M-Schmidt/funnel/internal/source"
	"github.com/Joshua-M-Schmidt/funnel/internal/storage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := sqlx.Connect("postgres", config.Get().DatabaseDSN)
	if err != nil {
		log.Printf("[ERROR] failed to connect to db: %v", err)
		return
	}
	defer db.Close()

	if err := storage.EnsureSchema(ctx, db); err != nil {
		log.Printf("[ERROR] failed to ensure schema: %v", err)
		return
	}

	var (
		itemStorage   = storage.NewItemStorage(db)
		sourceStorage = storage.NewSourceStorage(db)
	)

	var completer analysis.Completer
	switch config.Get().AIType {
	case "ollama":
		if config.Get().AIBaseURL == "" {
			log.Printf("[ERROR] ai_base_url is required when ai_type is \"ollama\"")
			return
		}
		completer = analysis.NewOllamaCompleter(
			config.Get().AIBaseURL,
			config.Get().AIModel,
			config.Get().AITimeout,
		)
		log.Printf("[INFO] using Ollama completer (model: %s)", config.Get().AIModel)
	default:
		if config.Get().AIKey == "" {
			log.Printf("[ERROR] ai_key is required when ai_type is \"openai\"")
			return
		}
		completer = analysis.NewOpenAICompleter(
			config.Get().AIBaseURL,
			config.Get().AIKey,
			config.Get().AIModel,
			config.Get().AITimeout,
		)
		log.Printf("[INFO] using OpenAI-compatible completer (model: %s)", config.Get().AIModel)
	}

	var (
		feedIngestor = fetcher.New(
			itemStorage,
			sourceStorage,
			source.NewRSSFetcher(),
			config.Get().FetchInterval,
		)
		itemProcessor = processor.New(
			itemStorage,
			analysis.New(completer),
			content.NewFetcher(config.Get().ContentTimeout),
			config.Get().BatchLimit,
			config.Get().ProcessInterval,
		)
	)

	if config.Get().FetchInterval > 0 {
		go func(ctx context.Context) {
			if err := feedIngestor.Start(ctx); err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Printf("[ERROR] failed to run fetcher: %v", err)
					return
				}

				log.Printf("[INFO] fetcher stopped")
			}
		}(ctx)
	}

	if config.Get().ProcessInterval > 0 {
		go func(ctx context.Context) {
			if err := itemProcessor.Start(ctx); err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Printf("[ERROR] failed to run processor: %v", err)
					return
				}

				log.Printf("[INFO] processor stopped")
			}
		}(ctx)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	api := server.New(feedIngestor, itemProcessor, itemStorage, sourceStorage, nil, logger)

	httpServer := &http.Server{
		Addr:    config.Get().ListenAddr,
		Handler: api,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Shutdown(context.Background())
	}()

	log.Printf("[INFO] listening on %s", config.Get().ListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("[ERROR] failed to run http server: %v", err)
	}
}
