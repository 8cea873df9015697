package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"
)

type closer struct {
	name  string
	order *[]string
	err   error
}

func (c closer) Close() error {
	*c.order = append(*c.order, c.name)
	return c.err
}

func TestShutdownRunsInReverseOrder(t *testing.T) {
	var order []string
	m := New(time.Second, nil)
	m.Register(CloseResource(closer{name: "ledger", order: &order}, "ledger"))
	m.Register(CloseResource(closer{name: "tracer", order: &order}, "tracer"))
	m.Register(CloseResource(closer{name: "broken", order: &order, err: errors.New("boom")}, "broken"))

	if failed := m.Shutdown(); failed != 1 {
		t.Errorf("expected 1 failure, got %d", failed)
	}
	want := []string{"broken", "tracer", "ledger"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
}

func TestWaitWithContextShutsDownOnCancel(t *testing.T) {
	var order []string
	m := New(time.Second, nil)
	m.Register(CloseResource(closer{name: "server", order: &order}, "server"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.WaitWithContext(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(order) != 1 {
		t.Errorf("shutdown functions not run: %v", order)
	}
}
