package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/fakhriadk/calmbot/internal/adapters/http"
	"github.com/fakhriadk/calmbot/internal/adapters/llm"
	firestorestore "github.com/fakhriadk/calmbot/internal/adapters/storage/firestore"
	memstore "github.com/fakhriadk/calmbot/internal/adapters/storage/memory"
	sqlitestore "github.com/fakhriadk/calmbot/internal/adapters/storage/sqlite"
	"github.com/fakhriadk/calmbot/internal/app/conversation"
	"github.com/fakhriadk/calmbot/internal/app/entitlement"
	journalapp "github.com/fakhriadk/calmbot/internal/app/journal"
	"github.com/fakhriadk/calmbot/internal/app/mood"
	"github.com/fakhriadk/calmbot/internal/config"
	"github.com/fakhriadk/calmbot/internal/domain"
	"github.com/fakhriadk/calmbot/internal/identity"
	"github.com/fakhriadk/calmbot/internal/observability"
	"github.com/fakhriadk/calmbot/internal/scheduler"
)

// stores groups the persistence ports of one backend.
type stores struct {
	messages     domain.MessageLog
	moods        domain.MoodStore
	journals     domain.JournalStore
	entitlements domain.EntitlementStore
	close        func() error
}

func main() {
	log := observability.Logger()

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	observability.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	completion, err := newCompletionClient(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize LLM client", "provider", cfg.LLMProvider, "error", err)
		os.Exit(1)
	}

	st, err := newStores(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize storage", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.close(); err != nil {
			log.Error("failed to close storage", "error", err)
		}
	}()

	persona, err := cfg.PersonaPrompt()
	if err != nil {
		log.Error("failed to load persona prompt", "error", err)
		os.Exit(1)
	}

	hub := conversation.NewHub(conversation.Deps{
		Auth:              identity.ContextProvider{},
		Log:               st.messages,
		Completion:        completion,
		Moods:             st.moods,
		Persona:           persona,
		CompletionTimeout: cfg.CompletionTimeout,
	})
	defer hub.Shutdown()

	sched := scheduler.New(hub, cfg.ReapSchedule, cfg.SessionIdleTTL)
	if err := sched.Start(); err != nil {
		log.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	var resolver identity.Resolver = identity.HeaderResolver{}
	if cfg.Mode == config.ModeGCP {
		resolver = identity.NewGoogleResolver(cfg.GoogleClientID)
	}

	handler := httpadapter.NewServer(httpadapter.Services{
		Sessions:     hub,
		Journal:      journalapp.NewService(st.journals),
		Moods:        mood.NewService(st.moods, st.journals),
		Entitlements: entitlement.NewService(st.entitlements),
		Identity:     resolver,
	})

	// No WriteTimeout: websocket connections and completions are long lived.
	srv := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		log.Info("CalmBot API listening",
			"addr", srv.Addr,
			"mode", cfg.Mode,
			"storage", cfg.StorageBackend,
			"llm", cfg.LLMProvider,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

func newCompletionClient(ctx context.Context, cfg *config.Config) (domain.CompletionClient, error) {
	log := observability.Logger()

	switch cfg.LLMProvider {
	case config.ProviderGemini:
		log.Info("using Gemini LLM client", "model", cfg.ModelName)
		return llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:    cfg.GeminiAPIKey,
			Project:   cfg.GCPProjectID,
			Location:  cfg.GCPLocation,
			ModelName: cfg.ModelName,
		})
	case config.ProviderOpenAI:
		log.Info("using OpenAI-compatible LLM client", "model", cfg.OpenAIModel, "base_url", cfg.OpenAIBaseURL)
		return llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), nil
	default:
		log.Info("using MOCK LLM client")
		return llm.NewMockLLM(), nil
	}
}

func newStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	log := observability.Logger()

	switch cfg.StorageBackend {
	case "firestore":
		log.Info("using Firestore storage", "project", cfg.GCPProjectID)
		fs, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			return nil, err
		}
		// 1 store, implements all 4 ports
		return &stores{messages: fs, moods: fs, journals: fs, entitlements: fs, close: fs.Close}, nil

	case "sqlite":
		log.Info("using SQLite storage", "path", cfg.SQLitePath)
		db, err := sqlitestore.New(cfg.SQLitePath, cfg.SQLitePollPeriod)
		if err != nil {
			return nil, err
		}
		return &stores{messages: db, moods: db, journals: db, entitlements: db, close: db.Close}, nil

	default:
		log.Info("using in-memory storage")
		return &stores{
			messages:     memstore.NewMessageStore(),
			moods:        memstore.NewMoodStore(),
			journals:     memstore.NewJournalStore(),
			entitlements: memstore.NewEntitlementStore(),
			close:        func() error { return nil },
		}, nil
	}
}
