package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/vcsync/internal/domain/model"
	"github.com/ericfisherdev/vcsync/internal/domain/port/driven"
)

// Handler processes one inbound message. Returning an error leaves the
// message unacked so the transport redelivers it; business-expected
// failures must be absorbed into the handler's own result instead.
type Handler func(ctx context.Context, msg driven.Message) error

// Dispatcher owns exactly one input topic and routes each delivery to the
// handler registered for its message type. Dispatch is single-threaded: a
// message is fully handled, nested publishes included, before the next one
// is pulled. Unmatched message types are acked and ignored, which keeps
// topics forward-compatible.
type Dispatcher struct {
	topic    string
	bus      driven.Bus
	handlers map[string]Handler
}

// NewDispatcher creates a Dispatcher for one topic.
func NewDispatcher(topic string, bus driven.Bus) *Dispatcher {
	return &Dispatcher{
		topic:    topic,
		bus:      bus,
		handlers: make(map[string]Handler),
	}
}

// Handle registers the handler for one message type. Registration is not
// safe once Run has started.
func (d *Dispatcher) Handle(messageType string, handler Handler) {
	d.handlers[messageType] = handler
}

// Run subscribes to the dispatcher's topic and processes deliveries until
// the context is canceled. Shutdown is observed between messages only.
func (d *Dispatcher) Run(ctx context.Context) error {
	deliveries, err := d.bus.Subscribe(d.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", d.topic, err)
	}

	slog.Info("dispatcher started", "topic", d.topic)
	for {
		select {
		case <-ctx.Done():
			slog.Info("dispatcher stopped", "topic", d.topic)
			return nil
		case delivery := <-deliveries:
			d.dispatch(ctx, delivery)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, delivery driven.Delivery) {
	handler, ok := d.handlers[delivery.Type]
	if !ok {
		delivery.Ack()
		return
	}

	if err := handler(ctx, delivery.Message); err != nil {
		slog.Error("message handling failed",
			"topic", d.topic,
			"message_type", delivery.Type,
			"error", err,
		)
		delivery.Nack()
		return
	}

	delivery.Ack()
}

// RegisterSyncHandlers wires the sync-topic routing table: inbound commands
// and normalized webhook events to the reconciliation services.
func RegisterSyncHandlers(d *Dispatcher, repos *RepoService, prs *PRService) {
	d.Handle(model.MsgRefreshConnectorRepositories, func(ctx context.Context, msg driven.Message) error {
		var cmd model.RefreshConnectorRepositories
		if err := json.Unmarshal(msg.Body, &cmd); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		result, err := repos.RefreshConnectorRepositories(ctx, cmd.OrganizationKey, cmd.ConnectorKey)
		if err != nil {
			return err
		}
		if !result.Success {
			slog.Warn("connector refresh rejected", "connector", cmd.ConnectorKey, "reason", result.Message)
		}
		return nil
	})

	d.Handle(model.MsgSyncPullRequests, func(ctx context.Context, msg driven.Message) error {
		var cmd model.SyncPullRequests
		if err := json.Unmarshal(msg.Body, &cmd); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		result, err := prs.SyncPullRequests(ctx, cmd.RepositoryKey)
		if err != nil {
			return err
		}
		if !result.Success {
			slog.Warn("pull request sync rejected", "repository", cmd.RepositoryKey, "reason", result.Message)
		}
		return nil
	})

	d.Handle(model.MsgRegisterRepositoriesConnectorWebhooks, func(ctx context.Context, msg driven.Message) error {
		var cmd model.RegisterRepositoriesConnectorWebhooks
		if err := json.Unmarshal(msg.Body, &cmd); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		result, err := repos.RegisterWebhooks(ctx, cmd.ConnectorKey, cmd.RepositoryKeys)
		if err != nil {
			return err
		}
		if !result.Success {
			slog.Warn("webhook registration rejected", "connector", cmd.ConnectorKey, "reason", result.Message)
		}
		return nil
	})

	d.Handle(model.MsgSetRepositoryImportState, func(ctx context.Context, msg driven.Message) error {
		var cmd model.SetRepositoryImportState
		if err := json.Unmarshal(msg.Body, &cmd); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		result, err := repos.SetImportState(ctx, cmd.RepositoryKey, cmd.ImportState)
		if err != nil {
			return err
		}
		if !result.Success {
			slog.Warn("import state change rejected", "repository", cmd.RepositoryKey, "reason", result.Message)
		}
		return nil
	})

	d.Handle(model.MsgRemoteRepositoryPushEvent, func(ctx context.Context, msg driven.Message) error {
		var event model.RemoteRepositoryPush
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		result, err := repos.HandleRemotePush(ctx, event)
		if err != nil {
			return err
		}
		if !result.Success {
			slog.Debug("remote push ignored",
				"connector", event.ConnectorKey,
				"repository_source_id", event.RepositorySourceID,
				"reason", result.Message,
			)
		}
		return nil
	})

	d.Handle(model.MsgPullRequestUpsertRequested, func(ctx context.Context, msg driven.Message) error {
		var request model.PullRequestUpsertRequested
		if err := json.Unmarshal(msg.Body, &request); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		result, err := prs.UpsertFromWebhook(ctx, request)
		if err != nil {
			return err
		}
		if !result.Success {
			slog.Warn("pull request webhook rejected",
				"connector", request.ConnectorKey,
				"repository_source_id", request.RepositorySourceID,
				"reason", result.Message,
			)
		}
		return nil
	})
}
