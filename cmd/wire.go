package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/autoseed-cli/internal/adapters/bridge/httpbridge"
	xorcodec "github.com/bnema/autoseed-cli/internal/adapters/codec/xor"
	"github.com/bnema/autoseed-cli/internal/adapters/content/gemini"
	runadapter "github.com/bnema/autoseed-cli/internal/adapters/render/run"
	tomlrepo "github.com/bnema/autoseed-cli/internal/adapters/repo/toml"
	chainstore "github.com/bnema/autoseed-cli/internal/adapters/secrets/chain"
	filestore "github.com/bnema/autoseed-cli/internal/adapters/secrets/file"
	passstore "github.com/bnema/autoseed-cli/internal/adapters/secrets/pass"
	"github.com/bnema/autoseed-cli/internal/application"
	"github.com/bnema/autoseed-cli/internal/bridge"
	"github.com/bnema/autoseed-cli/internal/config"
	"github.com/bnema/autoseed-cli/internal/engine"
	"github.com/bnema/autoseed-cli/internal/ports"
)

const agentPoll = 200 * time.Millisecond

type app struct {
	cfg         config.Config
	logger      *zap.Logger
	accounts    *application.AccountService
	campaigns   *application.CampaignService
	runs        *application.RunController
	scheduler   *application.Scheduler
	server      *httpbridge.Server
	client      *bridge.Client
	runRenderer func(engine.Snapshot, runadapter.RenderOptions) (string, error)
	now         func() time.Time
}

func wireApp(ctx context.Context, v *viper.Viper, logger *zap.Logger) (*app, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	accountRepo, err := tomlrepo.NewRepository(v)
	if err != nil {
		return nil, fmt.Errorf("wire account repository: %w", err)
	}
	campaignRepo, err := tomlrepo.NewCampaignRepository(v)
	if err != nil {
		return nil, fmt.Errorf("wire campaign repository: %w", err)
	}

	secretStore, err := newSecretStore(cfg.Secrets, logger)
	if err != nil {
		return nil, err
	}

	var generator ports.ContentGenerator
	if cfg.Content.APIKey != "" {
		g, err := gemini.NewGenerator(ctx, cfg.Content.APIKey, cfg.Content.Model, logger)
		if err != nil {
			return nil, fmt.Errorf("wire content generator: %w", err)
		}
		generator = g
	}

	serverOpts := []httpbridge.ServerOption{
		httpbridge.WithLogger(logger),
		httpbridge.WithHeartbeat(cfg.Bridge.Heartbeat),
	}
	if len(cfg.Bridge.AllowedOrigins) > 0 {
		serverOpts = append(serverOpts, httpbridge.WithAllowedOrigins(cfg.Bridge.AllowedOrigins...))
	}
	server := httpbridge.NewServer(serverOpts...)
	client := bridge.NewClient(server, logger)
	server.Attach(client)

	clock := ports.SystemClock{}
	accounts := application.NewAccountService(accountRepo, secretStore, xorcodec.New(xorcodec.DefaultKey))
	campaigns := application.NewCampaignService(accountRepo, campaignRepo, generator, clock)
	runs := application.NewRunController(client, accounts, campaigns, clock,
		application.WithRunTiming(cfg.Timing.Engine()),
		application.WithRunLogger(logger),
	)

	return &app{
		cfg:         cfg,
		logger:      logger,
		accounts:    accounts,
		campaigns:   campaigns,
		runs:        runs,
		scheduler:   application.NewScheduler(campaigns, runs, cfg.Scheduler.Interval, logger),
		server:      server,
		client:      client,
		runRenderer: runadapter.Render,
		now:         time.Now,
	}, nil
}

func newSecretStore(cfg config.SecretsConfig, logger *zap.Logger) (ports.SecretStore, error) {
	passOpts := []passstore.Option{
		passstore.WithBinary(cfg.PassBinary),
		passstore.WithStoreDir(cfg.PassDir),
	}

	switch cfg.Backend {
	case config.SecretsPass:
		return passstore.NewStore(passOpts...), nil
	case config.SecretsFile:
		return filestore.NewStore(cfg.Dir), nil
	default:
		store, err := chainstore.NewPassFirstWithFileFallback(cfg.Dir, logger, passOpts...)
		if err != nil {
			return nil, fmt.Errorf("wire secret store chain: %w", err)
		}
		return store, nil
	}
}

// withAgent serves the bridge for the lifetime of fn and calls fn once an
// agent is connected.
func (a *app) withAgent(ctx context.Context, out io.Writer, fn func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server.ListenAndServe(gctx, a.cfg.Bridge.Listen)
	})
	g.Go(func() error {
		defer cancel()

		_, _ = fmt.Fprintf(out, "waiting for agent on %s\n", a.cfg.Bridge.Listen)
		waitCtx, stop := context.WithTimeout(gctx, a.cfg.Bridge.AgentWait)
		err := a.server.WaitForAgent(waitCtx, agentPoll)
		stop()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("wait for agent: %w", httpbridge.ErrNoAgent)
			}
			return fmt.Errorf("wait for agent: %w", err)
		}

		return fn(gctx)
	})

	return g.Wait()
}
