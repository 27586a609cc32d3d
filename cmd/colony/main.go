// Command colony runs a society of roles against a shared environment bus:
// it loads the society definition, attaches the configured roles, seeds the
// bus with the initial requirement, and drives rounds until the society
// goes idle or the round cap is hit.
//
// Usage:
//
//	ANTHROPIC_API_KEY=sk-... SOCIETY_PATH=society.yaml colony
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-blackswan/colony/internal/action"
	"github.com/p-blackswan/colony/internal/bdi"
	"github.com/p-blackswan/colony/internal/coach"
	"github.com/p-blackswan/colony/internal/config"
	"github.com/p-blackswan/colony/internal/env"
	"github.com/p-blackswan/colony/internal/llm"
	"github.com/p-blackswan/colony/internal/memory"
	"github.com/p-blackswan/colony/internal/metrics"
	"github.com/p-blackswan/colony/internal/mgmt"
	"github.com/p-blackswan/colony/internal/retry"
	"github.com/p-blackswan/colony/internal/role"
	"github.com/p-blackswan/colony/internal/schema"
	"github.com/p-blackswan/colony/internal/workspace"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if cfg.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}

	society, err := config.LoadSociety(cfg.SocietyPath)
	if err != nil {
		return err
	}

	// ---- Storage ----
	archive, err := memory.NewArchive(cfg.ArchiveDSN, logger)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archive.Close()

	store, err := workspace.Open(cfg.WorkspaceDSN, logger)
	if err != nil {
		return fmt.Errorf("open workspace: %w", err)
	}
	defer store.Close()

	// ---- LLM Provider ----
	var provider llm.Provider = llm.NewAnthropicProvider(
		cfg.AnthropicAPIKey,
		llm.WithModel(cfg.AnthropicModel),
		llm.WithMaxTokens(cfg.LLMMaxTokens),
		llm.WithLogger(logger),
	)
	provider = llm.WithRetry(provider, retry.DefaultConfig())

	// ---- Environment ----
	m := metrics.New()
	environment := env.New(
		env.WithLogger(logger),
		env.WithMetrics(m),
		env.WithArchive(archive),
		env.WithMaxParallel(cfg.MaxParallel),
	)

	for _, rc := range society.Roles {
		r, err := buildRole(rc, provider, store, m, logger)
		if err != nil {
			return fmt.Errorf("role %q: %w", rc.Profile, err)
		}
		if err := environment.AddRole(r); err != nil {
			return err
		}
	}

	// ---- Metrics listener ----
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		logger.Info("metrics listener starting", "addr", cfg.MetricsListenAddr)
		if err := http.ListenAndServe(cfg.MetricsListenAddr, mux); err != nil {
			logger.Error("metrics listener failed", "err", err)
		}
	}()

	// ---- Management API ----
	server := mgmt.NewServer(mgmt.ServerConfig{ListenAddr: cfg.MgmtListenAddr}, environment, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("management server failed", "err", err)
		}
	}()
	defer func() {
		if err := server.Shutdown(); err != nil {
			logger.Warn("management server shutdown", "err", err)
		}
	}()

	// ---- Run ----
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A command-line requirement overrides the one in the society file.
	requirement := society.Requirement
	if len(os.Args) > 1 {
		requirement = strings.Join(os.Args[1:], " ")
	}
	if requirement != "" {
		msg := schema.New(requirement, "Driver", schema.KindRequirement)
		if err := environment.Publish(ctx, msg); err != nil {
			return fmt.Errorf("seed requirement: %w", err)
		}
	}

	rounds := cfg.Rounds
	if society.Rounds > 0 {
		rounds = society.Rounds
	}

	start := time.Now()
	logger.Info("colony starting",
		"roles", len(society.Roles), "rounds", rounds, "model", provider.ModelID())

	err = environment.Run(ctx, rounds)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("colony finished",
		"messages", environment.Len(), "elapsed", time.Since(start).String())
	return nil
}

// buildRole wires one configured role. The kind selects the action set and
// the default watch set; an explicit watch list overrides the default.
func buildRole(rc config.RoleConfig, provider llm.Provider, store *workspace.Store,
	m *metrics.Metrics, logger *slog.Logger) (*role.Role, error) {

	setting := role.Setting{
		Name:        rc.Name,
		Profile:     rc.Profile,
		Goal:        rc.Goal,
		Constraints: rc.Constraints,
	}
	opts := []role.Option{
		role.WithLogger(logger),
		role.WithMetrics(m),
		role.WithWatch(watchKinds(rc)...),
	}

	switch strings.ToLower(rc.Kind) {
	case "responder":
		registry, err := action.NewRegistry(action.NewRespond(provider))
		if err != nil {
			return nil, err
		}
		return role.New(setting, registry, opts...), nil

	case "writer":
		if len(rc.Artifacts) == 0 {
			return nil, fmt.Errorf("writer role needs at least one artifact key")
		}
		write := action.NewWriteArtifact(provider, store, rc.Profile, rc.Artifacts, 2, action.NonEmptyGate)
		registry, err := action.NewRegistry(write)
		if err != nil {
			return nil, err
		}
		return role.New(setting, registry, opts...), nil

	case "coach":
		agent, err := coach.New(setting, provider, opts...)
		if err != nil {
			return nil, err
		}
		return agent.Role, nil

	case "bdi":
		respond := action.NewRespond(provider)
		registry, err := action.NewRegistry(respond)
		if err != nil {
			return nil, err
		}
		steps := bdi.NewStepTable().Fallback(respond)
		agent := bdi.NewAgent(setting, registry, steps, opts)
		return agent.Role, nil

	default:
		return nil, fmt.Errorf("unknown role kind %q", rc.Kind)
	}
}

// watchKinds resolves a role's watch set: the explicit list when given,
// otherwise requirements.
func watchKinds(rc config.RoleConfig) []schema.Kind {
	if len(rc.Watch) == 0 {
		return []schema.Kind{schema.KindRequirement}
	}
	kinds := make([]schema.Kind, 0, len(rc.Watch))
	for _, w := range rc.Watch {
		kinds = append(kinds, schema.Kind(w))
	}
	return kinds
}
