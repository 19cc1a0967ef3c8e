package app

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/datachat/datachat/internal/analyze"
	"github.com/datachat/datachat/internal/config"
	contextmgmt "github.com/datachat/datachat/internal/context"
	"github.com/datachat/datachat/internal/dataset"
	"github.com/datachat/datachat/internal/llm"
	"github.com/datachat/datachat/internal/store"
)

// App wires the application's services together: persistence, context
// window management, the response cache, the chat service, and the
// tabular query router.
type App struct {
	Config   *config.Config
	Store    *store.SQLiteStore
	Windows  *contextmgmt.Manager
	Cache    *contextmgmt.ResponseCache
	Chats    *Service
	Analyzer *analyze.Router
	Datasets *dataset.Registry
}

// New initializes the application from configuration.
func New(cfg *config.Config) (*App, error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	windows := contextmgmt.NewManager(cfg.Window)
	cache := contextmgmt.NewResponseCache(cfg.Cache.MaxEntries)

	client := llm.NewOpenAIClient(cfg.OpenAI)
	chats := NewService(st, windows, cache, client)

	// Without an API key the analyzer still serves deterministic
	// queries; only the AI path is disabled.
	var engine analyze.Engine
	if cfg.OpenAI.APIKey != "" {
		engine = analyze.NewOpenAIEngine(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.Analyzer.MaxTokens)
	} else {
		log.Warn("no OpenAI API key configured, AI analysis disabled")
	}
	analyzer := analyze.NewRouter(nil, engine, cfg.Analyzer)

	log.Info("application initialized",
		"store", cfg.Store.Path,
		"window_messages", cfg.Window.MaxMessages,
		"cache_entries", cfg.Cache.MaxEntries,
		"ai_enabled", engine != nil)

	return &App{
		Config:   cfg,
		Store:    st,
		Windows:  windows,
		Cache:    cache,
		Chats:    chats,
		Analyzer: analyzer,
		Datasets: dataset.NewRegistry(),
	}, nil
}

// Close releases the application's resources.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
