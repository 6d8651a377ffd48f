package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chatdesk-ai/chatdesk/internal/ai"
	"github.com/chatdesk-ai/chatdesk/internal/bus"
	"github.com/chatdesk-ai/chatdesk/internal/channels"
	"github.com/chatdesk-ai/chatdesk/internal/channels/telegram"
	"github.com/chatdesk-ai/chatdesk/internal/chat"
	"github.com/chatdesk-ai/chatdesk/internal/config"
	"github.com/chatdesk-ai/chatdesk/internal/gateway"
	"github.com/chatdesk-ai/chatdesk/internal/providers"
	"github.com/chatdesk-ai/chatdesk/internal/scheduler"
	"github.com/chatdesk-ai/chatdesk/internal/store"
	"github.com/chatdesk-ai/chatdesk/internal/store/pg"
	"github.com/chatdesk-ai/chatdesk/internal/vector"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the support router (channels, pipeline, gateway, scheduler)",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	setupLogging()

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	slog.Debug("effective config", "config", cfg.MaskedCopy())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg); err != nil && err != context.Canceled {
		slog.Error("serve", "error", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	// Provider and key rotation.
	keys, err := providers.NewKeyPool(cfg.Providers.Gemini.APIKeys)
	if err != nil {
		return fmt.Errorf("provider keys (set CHATDESK_GEMINI_API_KEYS): %w", err)
	}
	retry := providers.DefaultRetryConfig(keys)

	var geminiOpts []providers.GeminiOption
	if cfg.Providers.Gemini.Model != "" {
		geminiOpts = append(geminiOpts, providers.WithGeminiModel(cfg.Providers.Gemini.Model))
	}
	if cfg.Providers.Gemini.EmbeddingModel != "" {
		geminiOpts = append(geminiOpts, providers.WithGeminiEmbeddingModel(cfg.Providers.Gemini.EmbeddingModel))
	}
	if cfg.Providers.Gemini.BaseURL != "" {
		geminiOpts = append(geminiOpts, providers.WithGeminiBaseURL(cfg.Providers.Gemini.BaseURL))
	}
	provider := providers.NewGeminiProvider(keys, geminiOpts...)

	// Vector index.
	var index vector.Index
	if path := cfg.VectorPath(); path != "" {
		idx, err := vector.OpenSQLiteIndex(path, providers.EmbeddingDim)
		if err != nil {
			return fmt.Errorf("open vector index: %w", err)
		}
		index = idx
	} else {
		index = vector.NewMemoryIndex(providers.EmbeddingDim)
	}
	defer index.Close()

	// Stores.
	stores, closeStores, err := buildStores(cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	// Pipeline.
	highValue := make([]ai.Intent, 0, len(cfg.Pipeline.HighValueIntents))
	for _, s := range cfg.Pipeline.HighValueIntents {
		highValue = append(highValue, ai.Intent(s))
	}
	escalator := chat.NewEscalator(chat.EscalatorConfig{
		ConfidenceThreshold: cfg.Pipeline.ConfidenceThreshold,
		SensitiveTopics:     cfg.Pipeline.SensitiveTopics,
		FrustrationTerms:    cfg.Pipeline.FrustrationTerms,
		HumanPhrases:        cfg.Pipeline.HumanPhrases,
		HighValueIntents:    highValue,
	})
	processor := chat.NewProcessor(chat.ProcessorConfig{
		Classifier: ai.NewClassifier(ai.ClassifierConfig{Provider: provider, Retry: retry}),
		Retriever: ai.NewRetriever(ai.RetrieverConfig{
			Provider:  provider,
			Index:     index,
			Retry:     retry,
			Namespace: cfg.Vector.Namespace,
			TopK:      cfg.Pipeline.ContextTopK,
		}),
		Responder: ai.NewResponder(ai.ResponderConfig{
			Provider:           provider,
			Retry:              retry,
			UncertaintyPhrases: cfg.Pipeline.UncertaintyPhrases,
		}),
		Escalator: escalator,
		Stores:    stores,
	})

	// Bus, channels, runtime.
	msgBus := bus.NewMessageBus()
	manager := channels.NewManager(msgBus)
	if cfg.Channels.Telegram.Enabled {
		tg, err := telegram.New(cfg.Channels.Telegram, msgBus)
		if err != nil {
			return fmt.Errorf("telegram channel: %w", err)
		}
		manager.RegisterChannel("telegram", tg)
	}

	if err := manager.StartAll(ctx); err != nil {
		return err
	}
	defer manager.StopAll(context.Background())

	runtime := chat.NewRuntime(processor, msgBus, 4)
	go runtime.Run(ctx)

	// Index sync job.
	sched, err := scheduler.New(scheduler.Config{
		Conversations: stores.Conversations,
		Provider:      provider,
		Index:         index,
		Retry:         retry,
		Namespace:     cfg.Vector.Namespace,
		CronExpr:      cfg.Scheduler.SyncCron,
	})
	if err != nil {
		return err
	}
	go sched.Run(ctx)

	// Hot-reload the keyword tables on config edits.
	go config.Watch(ctx, resolveConfigPath(), func(next *config.Config) {
		hv := make([]ai.Intent, 0, len(next.Pipeline.HighValueIntents))
		for _, s := range next.Pipeline.HighValueIntents {
			hv = append(hv, ai.Intent(s))
		}
		processor.SetEscalator(chat.NewEscalator(chat.EscalatorConfig{
			ConfidenceThreshold: next.Pipeline.ConfidenceThreshold,
			SensitiveTopics:     next.Pipeline.SensitiveTopics,
			FrustrationTerms:    next.Pipeline.FrustrationTerms,
			HumanPhrases:        next.Pipeline.HumanPhrases,
			HighValueIntents:    hv,
		}))
	})

	// Operator gateway blocks until shutdown.
	server := gateway.NewServer(cfg, msgBus, manager)
	return server.Start(ctx)
}

func buildStores(cfg *config.Config) (*store.Stores, func(), error) {
	if cfg.Database.Mode == "postgres" {
		stores, db, err := pg.NewPGStores(cfg.Database.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres stores: %w", err)
		}
		return stores, func() { db.Close() }, nil
	}
	slog.Warn("using in-memory stores, data is not persisted")
	return &store.Stores{
		Customers:     store.NewMemoryCustomerStore(),
		Conversations: store.NewMemoryConversationStore(),
	}, func() {}, nil
}
