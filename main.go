package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/okaimono/shopping-agent/agent/aggregate"
	"github.com/okaimono/shopping-agent/agent/dialogue"
	"github.com/okaimono/shopping-agent/agent/llm"
	promptx "github.com/okaimono/shopping-agent/agent/prompt"
	"github.com/okaimono/shopping-agent/agent/review"
	"github.com/okaimono/shopping-agent/agent/search"
	statex "github.com/okaimono/shopping-agent/agent/state"
	"github.com/okaimono/shopping-agent/agent/suggest"
	configx "github.com/okaimono/shopping-agent/pkg/config"
	_ "github.com/okaimono/shopping-agent/pkg/logger/autoload"
	"github.com/okaimono/shopping-agent/server"
)

type AppConfig struct {
	StoreBackend    string        `envconfig:"STORE_BACKEND" split_words:"true" default:"memory"`
	PostgresDSN     string        `envconfig:"POSTGRES_DSN" split_words:"true"`
	SessionTTL      time.Duration `envconfig:"SESSION_TTL" split_words:"true" default:"24h"`
	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" split_words:"true" default:"5s"`
	ResultLimit     int           `envconfig:"RESULT_LIMIT" split_words:"true" default:"20"`

	// Remote providers as "name=endpoint" pairs separated by commas. When
	// empty, the embedded catalog serves one provider per store.
	HTTPProviders string `envconfig:"HTTP_PROVIDERS" split_words:"true"`
	ProviderToken string `envconfig:"PROVIDER_TOKEN" split_words:"true"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("APP")
	serverCfg := configx.MustNew[server.Config]("HTTP")
	llmCfg := configx.MustNew[llm.Config]("OPENROUTER")
	if err := llmCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid llm config")
	}

	store := buildStore(ctx, appCfg)
	registry, catalog := buildProviders(appCfg)
	engine := search.NewEngine(registry,
		search.WithProviderTimeout(appCfg.ProviderTimeout),
		search.WithResultLimit(appCfg.ResultLimit),
	)

	summarizer, suggester := buildCapabilities(ctx, llmCfg)

	aggOpts := []aggregate.Option{}
	if summarizer != nil {
		aggOpts = append(aggOpts, aggregate.WithSummarizer(summarizer))
	}
	suggestOpts := []suggest.Option{}
	if suggester != nil {
		suggestOpts = append(suggestOpts, suggest.WithModel(suggester))
	}

	controllerOpts := []dialogue.ControllerOption{}
	if catalog != nil {
		controllerOpts = append(controllerOpts, dialogue.WithCandidateResolver(catalog.FindByCode))
	}

	controller, err := dialogue.NewController(
		store,
		engine,
		registry,
		aggregate.New(aggOpts...),
		suggest.New(suggestOpts...),
		review.NewLinker(),
		controllerOpts...,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build dialogue controller")
	}

	handlerOpts := []server.HandlerOption{}
	if counter, ok := store.(server.SessionCounter); ok {
		handlerOpts = append(handlerOpts, server.WithSessionCounter(counter))
	}

	srv := server.New(*serverCfg, server.NewHandler(controller, handlerOpts...))
	log.Info().
		Strs("providers", registry.Names()).
		Str("store", appCfg.StoreBackend).
		Bool("llm_enabled", llmCfg.Enabled()).
		Msg("shopping agent starting")
	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
}

func buildStore(ctx context.Context, cfg *AppConfig) statex.Store {
	switch strings.ToLower(strings.TrimSpace(cfg.StoreBackend)) {
	case "", "memory":
		return statex.NewMemoryStore(statex.WithTTL(cfg.SessionTTL))
	case "postgres":
		pg, err := statex.NewPostgresStore(cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open postgres store")
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to ensure postgres schema")
		}
		return pg
	default:
		log.Fatal().Str("backend", cfg.StoreBackend).Msg("unknown store backend")
		return nil
	}
}

// buildProviders registers remote HTTP providers when configured, otherwise
// one provider per embedded catalog store. The catalog also backs product
// code resolution whenever it loads.
func buildProviders(cfg *AppConfig) (*search.Registry, *search.Catalog) {
	registry := search.NewRegistry()

	catalog, err := search.LoadCatalog()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load embedded catalog")
	}

	if spec := strings.TrimSpace(cfg.HTTPProviders); spec != "" {
		for _, pair := range strings.Split(spec, ",") {
			name, endpoint, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok {
				log.Fatal().Str("pair", pair).Msg("invalid HTTP_PROVIDERS entry, want name=endpoint")
			}
			opts := []search.HTTPOption{}
			if cfg.ProviderToken != "" {
				opts = append(opts, search.WithBearerToken(cfg.ProviderToken))
			}
			provider, err := search.NewHTTPProvider(strings.TrimSpace(name), strings.TrimSpace(endpoint), opts...)
			if err != nil {
				log.Fatal().Err(err).Msg("failed to build http provider")
			}
			if err := registry.Register(provider); err != nil {
				log.Fatal().Err(err).Msg("failed to register http provider")
			}
		}
		return registry, catalog
	}

	for _, store := range catalog.Stores() {
		if err := registry.Register(catalog.Provider(store)); err != nil {
			log.Fatal().Err(err).Msg("failed to register catalog provider")
		}
	}
	return registry, catalog
}

// buildCapabilities compiles the model-backed summarize/suggest graphs when
// an API key is configured. Without one both stay nil and the agent relies
// on deterministic fallbacks.
func buildCapabilities(ctx context.Context, cfg *llm.Config) (*llm.Summarizer, *llm.Suggester) {
	if !cfg.Enabled() {
		log.Info().Msg("llm capabilities disabled, using deterministic fallbacks")
		return nil, nil
	}
	prompts := promptx.LoadPromptSet()

	summarizeCfg := cfg.OpenRouterFor(llm.CapabilitySummarize)
	summarizeModel, err := summarizeCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build summarize model")
	}
	summarizer, err := llm.NewSummarizer(ctx, summarizeModel, prompts.Summarize)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to compile summarizer")
	}

	suggestCfg := cfg.OpenRouterFor(llm.CapabilitySuggest)
	suggestModel, err := suggestCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build suggest model")
	}
	suggester, err := llm.NewSuggester(ctx, suggestModel, prompts.Suggest)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to compile suggester")
	}

	return summarizer, suggester
}
