package gate

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testGate(t *testing.T) (*Gate, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client), mr
}

func TestNeedsMoreTimeWritesRecord(t *testing.T) {
	g, mr := testGate(t)
	at := time.Now().Add(30 * time.Second)

	g.NeedsMoreTime(context.Background(), "42", at)

	val, err := mr.Get("retry-at:42")
	if err != nil {
		t.Fatalf("record missing: %v", err)
	}
	stored, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		t.Fatalf("record is not a timestamp: %v", err)
	}
	if stored != at.Unix() {
		t.Fatalf("stored timestamp = %d, want %d", stored, at.Unix())
	}

	// TTL covers the remaining delay; truncation may shave up to a second.
	ttl := mr.TTL("retry-at:42")
	if ttl < 25*time.Second || ttl > 30*time.Second {
		t.Fatalf("ttl = %v, want about 30s", ttl)
	}
}

func TestCheckMoreTimeMonotonic(t *testing.T) {
	g, _ := testGate(t)
	ctx := context.Background()
	at := time.Now().Add(time.Minute)

	g.NeedsMoreTime(ctx, "42", at)

	got := g.CheckMoreTime(ctx, "42")
	if got == nil {
		t.Fatal("expected a recorded retry time")
	}
	if !got.After(time.Now()) {
		t.Fatalf("returned time %v is not in the future", got)
	}
	if got.Unix() != at.Unix() {
		t.Fatalf("returned %d, want %d", got.Unix(), at.Unix())
	}
}

func TestCheckMoreTimeAbsent(t *testing.T) {
	g, _ := testGate(t)

	if got := g.CheckMoreTime(context.Background(), "42"); got != nil {
		t.Fatalf("expected nil for an unknown chat, got %v", got)
	}
}

func TestCheckMoreTimePastValue(t *testing.T) {
	g, mr := testGate(t)

	past := time.Now().Add(-time.Minute).Unix()
	if err := mr.Set("retry-at:42", strconv.FormatInt(past, 10)); err != nil {
		t.Fatal(err)
	}

	if got := g.CheckMoreTime(context.Background(), "42"); got != nil {
		t.Fatalf("expected nil for a past timestamp, got %v", got)
	}
}

func TestNeedsMoreTimePastStillWrites(t *testing.T) {
	g, mr := testGate(t)

	g.NeedsMoreTime(context.Background(), "42", time.Now().Add(-5*time.Second))

	// The record is written with a minimal TTL so readers treat it as absent.
	if !mr.Exists("retry-at:42") {
		t.Fatal("record should exist right after the write")
	}
	if got := g.CheckMoreTime(context.Background(), "42"); got != nil {
		t.Fatalf("a past gate should read as absent, got %v", got)
	}
}

func TestCheckMoreTimeFailOpen(t *testing.T) {
	g, mr := testGate(t)

	t.Run("garbage value", func(t *testing.T) {
		if err := mr.Set("retry-at:42", "not-a-timestamp"); err != nil {
			t.Fatal(err)
		}
		if got := g.CheckMoreTime(context.Background(), "42"); got != nil {
			t.Fatalf("expected nil for an unparseable record, got %v", got)
		}
	})

	t.Run("store unreachable", func(t *testing.T) {
		mr.Close()
		if got := g.CheckMoreTime(context.Background(), "42"); got != nil {
			t.Fatalf("expected nil when the store is down, got %v", got)
		}
	})
}

func TestNeedsMoreTimeSwallowsWriteFailure(t *testing.T) {
	g, mr := testGate(t)
	mr.Close()

	// Must not panic or surface an error; the next 429 re-creates the gate.
	g.NeedsMoreTime(context.Background(), "42", time.Now().Add(30*time.Second))
}

func TestGateExpires(t *testing.T) {
	g, mr := testGate(t)
	ctx := context.Background()

	g.NeedsMoreTime(ctx, "42", time.Now().Add(10*time.Second))
	mr.FastForward(11 * time.Second)

	if got := g.CheckMoreTime(ctx, "42"); got != nil {
		t.Fatalf("expected the gate to expire with its delay, got %v", got)
	}
}
