package event

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
)

// orderedSubscriber records delivery order into a shared slice.
type orderedSubscriber struct {
	name  string
	order *[]string
	err   error
	panic bool
}

func (o *orderedSubscriber) Name() string { return o.name }

func (o *orderedSubscriber) OnPermissionsChanged(context.Context, PermissionChange) error {
	*o.order = append(*o.order, o.name)
	if o.panic {
		panic("subscriber blew up")
	}
	return o.err
}

// shutdownOnly implements only the Shutdown event.
type shutdownOnly struct {
	called bool
}

func (s *shutdownOnly) Name() string { return "shutdown-only" }

func (s *shutdownOnly) OnShutdown(context.Context) error {
	s.called = true
	return nil
}

func TestBusDeliversInRegistrationOrder(t *testing.T) {
	bus := NewBus(slog.New(slog.DiscardHandler))
	var order []string
	bus.Subscribe(&orderedSubscriber{name: "a", order: &order})
	bus.Subscribe(&orderedSubscriber{name: "b", order: &order})
	bus.Subscribe(&orderedSubscriber{name: "c", order: &order})

	bus.PublishPermissionsChanged(context.Background(), PermissionChange{TenantID: "t1"})

	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("expected delivery in order [a b c], got %v", order)
	}
}

func TestBusIsolatesSubscriberErrors(t *testing.T) {
	bus := NewBus(slog.New(slog.DiscardHandler))
	var order []string
	bus.Subscribe(&orderedSubscriber{name: "failing", order: &order, err: errors.New("boom")})
	bus.Subscribe(&orderedSubscriber{name: "healthy", order: &order})

	bus.PublishPermissionsChanged(context.Background(), PermissionChange{TenantID: "t1"})

	if len(order) != 2 || order[1] != "healthy" {
		t.Fatalf("expected healthy subscriber still notified, got %v", order)
	}
}

func TestBusIsolatesSubscriberPanics(t *testing.T) {
	bus := NewBus(slog.New(slog.DiscardHandler))
	var order []string
	bus.Subscribe(&orderedSubscriber{name: "panicking", order: &order, panic: true})
	bus.Subscribe(&orderedSubscriber{name: "healthy", order: &order})

	bus.PublishPermissionsChanged(context.Background(), PermissionChange{TenantID: "t1"})

	if len(order) != 2 || order[1] != "healthy" {
		t.Fatalf("expected panic contained and healthy subscriber notified, got %v", order)
	}
}

func TestBusRoutesByImplementedInterfaces(t *testing.T) {
	bus := NewBus(slog.New(slog.DiscardHandler))
	var order []string
	bus.Subscribe(&orderedSubscriber{name: "perms", order: &order})
	so := &shutdownOnly{}
	bus.Subscribe(so)

	// A grant event reaches neither; neither implements GrantWritten.
	bus.PublishGrantWritten(context.Background(), &grant.Grant{ID: id.NewGrantID()})
	if len(order) != 0 {
		t.Fatalf("expected no delivery for unimplemented event, got %v", order)
	}

	bus.PublishShutdown(context.Background())
	if !so.called {
		t.Fatal("expected shutdown-only subscriber notified")
	}
	if len(order) != 0 {
		t.Fatalf("expected permission subscriber untouched by shutdown, got %v", order)
	}

	if n := len(bus.Subscribers()); n != 2 {
		t.Fatalf("expected 2 registered subscribers, got %d", n)
	}
}
