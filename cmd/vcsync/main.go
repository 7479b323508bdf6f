package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	azureadapter "github.com/ericfisherdev/vcsync/internal/adapter/driven/azure"
	bitbucketadapter "github.com/ericfisherdev/vcsync/internal/adapter/driven/bitbucket"
	githubadapter "github.com/ericfisherdev/vcsync/internal/adapter/driven/github"
	gitlabadapter "github.com/ericfisherdev/vcsync/internal/adapter/driven/gitlab"
	"github.com/ericfisherdev/vcsync/internal/adapter/driven/membus"
	sqliteadapter "github.com/ericfisherdev/vcsync/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/vcsync/internal/application"
	"github.com/ericfisherdev/vcsync/internal/config"
	"github.com/ericfisherdev/vcsync/internal/domain/model"
	"github.com/ericfisherdev/vcsync/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"db_path", cfg.DBPath,
		"organization", cfg.OrganizationKey,
		"refresh_interval", cfg.RefreshInterval,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire stores and bus.
	repoStore := sqliteadapter.NewRepositoryRepo(db)
	prStore := sqliteadapter.NewPullRequestRepo(db)
	bus := membus.New()

	// 6. Register configured connectors.
	registry := application.NewConnectorRegistry()
	if cfg.GitHub.Configured() {
		registry.Register(cfg.GitHub.Key, githubadapter.NewConnector(
			cfg.GitHub.Key, cfg.GitHub.Token, cfg.GitHub.Account, cfg.WebhookURL, cfg.WebhookSecret))
	}
	if cfg.GitLab.Configured() {
		registry.Register(cfg.GitLab.Key, gitlabadapter.NewConnector(
			cfg.GitLab.Key, cfg.GitLab.Token, cfg.GitLab.BaseURL, cfg.WebhookURL, cfg.WebhookSecret))
	}
	if cfg.Bitbucket.Configured() {
		registry.Register(cfg.Bitbucket.Key, bitbucketadapter.NewConnector(
			cfg.Bitbucket.Key, cfg.Bitbucket.Token, cfg.Bitbucket.Account, cfg.Bitbucket.BaseURL, cfg.WebhookURL))
	}
	if cfg.Azure.Configured() {
		registry.Register(cfg.Azure.Key, azureadapter.NewConnector(
			cfg.Azure.Key, cfg.Azure.Token, cfg.Azure.Account, cfg.Azure.BaseURL, cfg.WebhookURL))
	}
	slog.Info("connectors registered", "keys", registry.Keys())

	// 7. Create services and wire the sync-topic dispatcher.
	repoSvc := application.NewRepoService(repoStore, registry, bus)
	prSvc := application.NewPRService(repoStore, prStore, registry, bus)

	dispatcher := application.NewDispatcher(model.TopicSync, bus)
	application.RegisterSyncHandlers(dispatcher, repoSvc, prSvc)

	// An HTTP ingress for vendor webhooks would wrap
	// application.NewWebhookService(registry, bus) here and feed deliveries
	// into the sync topic; this build takes commands from the refresh loop
	// only.

	errCh := make(chan error, 3)
	go func() {
		errCh <- dispatcher.Run(ctx)
	}()

	// Outbound event topics are bounded queues and must always have a
	// consumer; without one they fill up and publishes start failing.
	go func() {
		errCh <- application.NewEventLogger(model.TopicRepositoryEvents, bus).Run(ctx)
	}()
	go func() {
		errCh <- application.NewEventLogger(model.TopicPullRequestEvents, bus).Run(ctx)
	}()

	// 8. Periodically queue a repository refresh per connector.
	go refreshLoop(ctx, bus, registry.Keys(), cfg.OrganizationKey, cfg.RefreshInterval)

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}

// refreshLoop publishes a RefreshConnectorRepositories command for every
// connector immediately and then on the configured interval.
func refreshLoop(ctx context.Context, publisher driven.Publisher, keys []string, organizationKey string, interval time.Duration) {
	publishAll := func() {
		for _, key := range keys {
			body, err := json.Marshal(model.RefreshConnectorRepositories{
				OrganizationKey: organizationKey,
				ConnectorKey:    key,
			})
			if err != nil {
				slog.Error("marshal refresh command", "connector", key, "error", err)
				continue
			}
			msg := driven.Message{
				Topic: model.TopicSync,
				Type:  model.MsgRefreshConnectorRepositories,
				Body:  body,
			}
			if err := publisher.Publish(ctx, msg); err != nil {
				slog.Error("queue refresh command", "connector", key, "error", err)
			}
		}
	}

	publishAll()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			publishAll()
		}
	}
}
