// Package application contains the reconciliation engines, webhook
// normalization entry point, and message dispatch that make up the core of
// vcsync.
package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/ericfisherdev/vcsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ConnectorResolver = (*ConnectorRegistry)(nil)

// ConnectorRegistry resolves connector keys to vendor adapters. Adapters are
// registered once at startup; Replace supports swapping an adapter at
// runtime when credentials rotate.
type ConnectorRegistry struct {
	mu         sync.RWMutex
	connectors map[string]driven.Connector
}

// NewConnectorRegistry creates an empty registry.
func NewConnectorRegistry() *ConnectorRegistry {
	return &ConnectorRegistry{connectors: make(map[string]driven.Connector)}
}

// Register adds a connector under its key. Registering an existing key
// replaces the previous adapter.
func (r *ConnectorRegistry) Register(connectorKey string, connector driven.Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[connectorKey] = connector
}

// Resolve returns the connector registered under connectorKey, or
// ErrConnectorNotFound.
func (r *ConnectorRegistry) Resolve(_ context.Context, connectorKey string) (driven.Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connector, ok := r.connectors[connectorKey]
	if !ok {
		return nil, fmt.Errorf("resolve connector %s: %w", connectorKey, driven.ErrConnectorNotFound)
	}
	return connector, nil
}

// Keys returns the registered connector keys.
func (r *ConnectorRegistry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.connectors))
	for key := range r.connectors {
		keys = append(keys, key)
	}
	return keys
}
