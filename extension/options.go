package extension

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/event"
	"github.com/xraph/bastion/metrics"
	"github.com/xraph/bastion/store"
)

// ExtOption configures the Bastion Forge extension.
type ExtOption func(*Extension)

// WithStore sets the persistence backend.
func WithStore(s store.Store) ExtOption {
	return func(e *Extension) {
		e.bastionOpts = append(e.bastionOpts, bastion.WithStore(s))
	}
}

// WithConfig sets the extension configuration.
func WithConfig(cfg Config) ExtOption {
	return func(e *Extension) {
		e.config = cfg
	}
}

// WithEngineOptions adds engine-level options.
func WithEngineOptions(opts ...bastion.Option) ExtOption {
	return func(e *Extension) {
		e.bastionOpts = append(e.bastionOpts, opts...)
	}
}

// WithSubscriber registers a permission change event subscriber.
func WithSubscriber(s event.Subscriber) ExtOption {
	return func(e *Extension) {
		e.subscribers = append(e.subscribers, s)
	}
}

// WithMetrics registers a Prometheus collector subscribed to the
// engine's event bus.
func WithMetrics(reg prometheus.Registerer) ExtOption {
	return func(e *Extension) {
		e.subscribers = append(e.subscribers, metrics.NewCollector(reg))
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ExtOption {
	return func(e *Extension) {
		e.logger = l
	}
}

// WithDisableRoutes disables the registration of HTTP routes.
func WithDisableRoutes() ExtOption {
	return func(e *Extension) {
		e.config.DisableRoutes = true
	}
}

// WithDisableMigrate disables auto-migration on start.
func WithDisableMigrate() ExtOption {
	return func(e *Extension) {
		e.config.DisableMigrate = true
	}
}
