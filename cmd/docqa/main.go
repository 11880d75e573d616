package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/embedding"
	"docqa/internal/embedding/gemini"
	"docqa/internal/embedding/hashing"
	"docqa/internal/ingest"
	"docqa/internal/logging"
	"docqa/internal/qa"
	"docqa/internal/retriever"
	"docqa/internal/summarizer"
	"docqa/internal/tui"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/flat"
	"docqa/internal/vectorstore/memory"
	"docqa/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, storePath string
	var topK int
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/docqa/config.yaml if not provided)")
	flag.StringVar(&storePath, "store", "", "Base path for the on-disk index (overrides config)")
	flag.IntVar(&topK, "top-k", 0, "Number of chunks to retrieve per question (overrides config)")
	flag.Parse()
	inputs := flag.Args()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	applyOverrides(cfg, storePath, &topK)

	logger := logging.New(cfg.Debug)
	defer logger.Sync()

	// Assemble components
	var emb embedding.Embedder
	switch cfg.Embedder.Type {
	case "hashing", "":
		dimension := 0
		if cfg.Embedder.Hashing != nil {
			dimension = cfg.Embedder.Hashing.Dimension
		}
		emb = hashing.NewEmbedder(dimension)
	case "gemini":
		gcfg := gemini.Config{}
		if cfg.Embedder.Gemini != nil {
			gcfg = gemini.Config{
				BaseURL:   cfg.Embedder.Gemini.BaseURL,
				APIKeyEnv: cfg.Embedder.Gemini.APIKeyEnv,
				Model:     cfg.Embedder.Gemini.Model,
				BatchSize: cfg.Embedder.Gemini.BatchSize,
				Timeout:   time.Duration(cfg.Embedder.Gemini.TimeoutSecs) * time.Second,
			}
		}
		client, err := gemini.NewClient(gcfg, logger)
		if err != nil {
			log.Fatalf("gemini embedder init failed: %v", err)
		}
		emb = client
	default:
		log.Fatalf("unknown embedder: %s", cfg.Embedder.Type)
	}

	// A store that fails to construct leaves the service in a degraded mode:
	// ingestion and retrieval run against a nil store and return empty
	// results instead of crashing the process.
	var store vectorstore.Store
	switch cfg.Store.Type {
	case "flat", "":
		s, err := flat.New(emb.Dimension(), cfg.Store.Path, logger)
		if err != nil {
			logger.Error("flat store init failed, continuing without a store", zap.Error(err))
		} else {
			store = s
		}
	case "memory":
		s, err := memory.New(emb.Dimension(), logger)
		if err != nil {
			logger.Error("memory store init failed, continuing without a store", zap.Error(err))
		} else {
			store = s
		}
	case "qdrant":
		if cfg.Store.Qdrant == nil {
			log.Fatalf("qdrant store config missing")
		}
		s, err := qdrant.New(qdrant.Config{
			URL:        cfg.Store.Qdrant.URL,
			APIKey:     cfg.Store.Qdrant.APIKey,
			Collection: cfg.Store.Qdrant.Collection,
			Dimension:  emb.Dimension(),
			Timeout:    time.Duration(cfg.Store.Qdrant.TimeoutSecs) * time.Second,
		}, logger)
		if err != nil {
			logger.Error("qdrant store init failed, continuing without a store", zap.Error(err))
		} else {
			store = s
		}
	default:
		log.Fatalf("unknown store: %s", cfg.Store.Type)
	}

	ch := chunker.NewWindowChunker(cfg.Chunker.Size, cfg.Chunker.Overlap, logger)

	banner := "Ready. Ask a question."
	switch {
	case len(inputs) > 0 && store == nil:
		logger.Warn("vector store unavailable, ingestion disabled")
		banner = "Store unavailable. Running in degraded mode."
	case len(inputs) > 0:
		svc := ingest.New(ch, emb, store, ingest.Options{
			BatchSize: cfg.Ingest.BatchSize,
			Workers:   cfg.Ingest.Workers,
		}, logger)
		results, err := svc.IngestPaths(context.Background(), inputs)
		if err != nil {
			log.Fatalf("ingestion failed: %v", err)
		}
		banner = ingestBanner(results)
	case store == nil || store.Len() == 0:
		fmt.Println("Usage: docqa [--config=config.yaml] [--store=path] [--top-k=N] file1.txt [file2.txt ...]")
		os.Exit(1)
	}

	r := retriever.New(emb, store, logger)
	service := qa.New(r, summarizer.NewFrequencySummarizer(), cfg.Answer.MaxSentences, logger)

	p := tea.NewProgram(tui.New(service, topK, banner), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("TUI failed: %v", err)
	}

	// Flush on shutdown so late adds are not lost.
	if store != nil {
		if err := store.Save(); err != nil {
			logger.Error("failed to save vector store on shutdown", zap.Error(err))
		}
	}
}

// applyOverrides folds command-line values into the loaded config. Empty or
// zero values leave the config untouched.
func applyOverrides(cfg *config.AppConfig, storePath string, topK *int) {
	if storePath != "" {
		cfg.Store.Path = storePath
	}
	if *topK <= 0 {
		*topK = cfg.Retriever.TopK
	}
}

func ingestBanner(results []ingest.Result) string {
	indexed, chunks, failed := 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case ingest.StatusIndexed:
			indexed++
			chunks += r.ChunkCount
		case ingest.StatusFailed:
			failed++
		}
	}
	if failed > 0 {
		return fmt.Sprintf("Indexed %d documents (%d chunks), %d failed. Ask a question.", indexed, chunks, failed)
	}
	return fmt.Sprintf("Indexed %d documents (%d chunks). Ask a question.", indexed, chunks)
}
