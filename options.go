package bastion

import (
	"log/slog"

	"github.com/xraph/bastion/auditlog"
	"github.com/xraph/bastion/event"
	"github.com/xraph/bastion/store"
)

// Option is a functional option for the Engine.
type Option func(*Engine)

// WithStore sets the composite store.
func WithStore(s store.Store) Option { return func(e *Engine) { e.store = s } }

// WithCache sets the effective permission cache.
func WithCache(c Cache) Option { return func(e *Engine) { e.cache = c } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithConfig sets the engine configuration.
func WithConfig(c Config) Option { return func(e *Engine) { e.config = c } }

// WithTaxonomy replaces the default audit action registry.
func WithTaxonomy(t *auditlog.Taxonomy) Option { return func(e *Engine) { e.taxonomy = t } }

// WithSubscriber registers an event subscriber with the engine's bus.
func WithSubscriber(s event.Subscriber) Option {
	return func(e *Engine) {
		if e.bus == nil {
			e.bus = event.NewBus(e.logger)
		}
		e.bus.Subscribe(s)
	}
}
