package contextkeys

import (
	"context"
	"testing"
)

func TestPrincipalSetOnce(t *testing.T) {
	ctx := context.Background()

	if _, ok := Principal(ctx); ok {
		t.Fatal("fresh context should carry no principal")
	}

	ctx = WithPrincipal(ctx, "uid=alice,ou=people,dc=example,dc=org")
	p, ok := Principal(ctx)
	if !ok || p != "uid=alice,ou=people,dc=example,dc=org" {
		t.Fatalf("Principal() = %q, %v", p, ok)
	}

	// A second write must not displace the first.
	ctx = WithPrincipal(ctx, "uid=mallory,ou=people,dc=example,dc=org")
	p, _ = Principal(ctx)
	if p != "uid=alice,ou=people,dc=example,dc=org" {
		t.Errorf("principal was overwritten: %q", p)
	}
}

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	if got := RequestID(ctx); got != "req-1" {
		t.Errorf("RequestID() = %q, want %q", got, "req-1")
	}
	if got := RequestID(context.Background()); got != "" {
		t.Errorf("RequestID(empty) = %q, want empty", got)
	}
}
