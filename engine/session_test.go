package engine

import (
	"context"
	"strings"
	"testing"
)

func TestNewSessionAppliesMemoryLimit(t *testing.T) {
	ctx := context.Background()
	sess, err := NewSession(ctx, ":memory:", 256)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer sess.Close()

	var limit string
	row := sess.db.QueryRowContext(ctx, "SELECT current_setting('memory_limit')")
	if err := row.Scan(&limit); err != nil {
		t.Fatalf("query memory_limit setting: %v", err)
	}
	if !strings.Contains(limit, "256") {
		t.Errorf("memory_limit = %q, want it to reflect the configured 256MB ceiling", limit)
	}
}

func TestNewSessionZeroLimitLeavesDefault(t *testing.T) {
	ctx := context.Background()
	sess, err := NewSession(ctx, ":memory:", 0)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer sess.Close()
}
