package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testDoc struct {
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

func newTestStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	return mr, New(client, Config{
		Prefix:  "t",
		Indexes: map[string][]string{"users": {"username"}},
	})
}

func TestWriteThenGet(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	if err := store.Write(ctx, "users/u1", testDoc{Email: "a@b.co"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	snap, err := store.Get(ctx, "/users/u1/")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !snap.Exists || snap.Key != "u1" || snap.Path != "users/u1" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	var got testDoc
	if err := snap.Decode(&got); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Email != "a@b.co" {
		t.Fatalf("expected email a@b.co, got %q", got.Email)
	}
}

func TestGetMissingIsNotAnError(t *testing.T) {
	_, store := newTestStore(t)

	snap, err := store.Get(context.Background(), "users/nobody")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if snap.Exists {
		t.Fatal("expected missing snapshot")
	}
	if err := snap.Decode(&testDoc{}); err == nil {
		t.Fatal("expected decode error on missing document")
	}
}

func TestInvalidPathRejected(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	for _, path := range []string{"", "users", "users/", "a/b/c"} {
		if _, err := store.Get(ctx, path); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("path %q: expected ErrInvalidPath, got %v", path, err)
		}
	}
}

func TestQueryEqualFollowsIndexUpdates(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	if err := store.Write(ctx, "users/u1", testDoc{Email: "a@b.co", Username: "alice"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	snaps, err := store.QueryEqual(ctx, "users", "username", "alice")
	if err != nil {
		t.Fatalf("QueryEqual failed: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Key != "u1" {
		t.Fatalf("expected one hit for alice, got %+v", snaps)
	}

	if err := store.Write(ctx, "users/u1", testDoc{Email: "a@b.co", Username: "alicia"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	snaps, err = store.QueryEqual(ctx, "users", "username", "alice")
	if err != nil {
		t.Fatalf("QueryEqual failed: %v", err)
	}
	if len(snaps) != 0 {
		t.Fatalf("expected stale index entry to be removed, got %+v", snaps)
	}

	if err := store.Delete(ctx, "users/u1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	snaps, err = store.QueryEqual(ctx, "users", "username", "alicia")
	if err != nil {
		t.Fatalf("QueryEqual failed: %v", err)
	}
	if len(snaps) != 0 {
		t.Fatalf("expected no hits after delete, got %+v", snaps)
	}
}

func TestQueryEqualRequiresIndex(t *testing.T) {
	_, store := newTestStore(t)

	_, err := store.QueryEqual(context.Background(), "users", "email", "a@b.co")
	if !errors.Is(err, ErrNotIndexed) {
		t.Fatalf("expected ErrNotIndexed, got %v", err)
	}
}

func TestAppendAndList(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	k1, err := store.Append(ctx, "hero_slides", map[string]any{"order": 2})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	k2, err := store.Append(ctx, "hero_slides", map[string]any{"order": 1})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if k1 == "" || k1 == k2 {
		t.Fatalf("expected distinct generated keys, got %q and %q", k1, k2)
	}

	snaps, err := store.List(ctx, "hero_slides")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 slides, got %d", len(snaps))
	}
}

func TestUnavailableWhenRedisDown(t *testing.T) {
	mr, store := newTestStore(t)
	mr.SetError("ERR induced failure")

	_, err := store.Get(context.Background(), "users/u1")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func recvSnapshot(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return Snapshot{}
}

func TestSubscribeDeliversInitialThenChanges(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	if err := store.Write(ctx, "users/u1", testDoc{Email: "first@b.co"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	ch := make(chan Snapshot, 8)
	sub, err := store.Subscribe(ctx, "users/u1", func(s Snapshot) { ch <- s })
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	var doc testDoc
	if err := recvSnapshot(t, ch).Decode(&doc); err != nil || doc.Email != "first@b.co" {
		t.Fatalf("unexpected initial snapshot: %+v err=%v", doc, err)
	}

	if err := store.Write(ctx, "users/u1", testDoc{Email: "second@b.co"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := recvSnapshot(t, ch).Decode(&doc); err != nil || doc.Email != "second@b.co" {
		t.Fatalf("unexpected update snapshot: %+v err=%v", doc, err)
	}

	if err := store.Delete(ctx, "users/u1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if snap := recvSnapshot(t, ch); snap.Exists {
		t.Fatalf("expected delete notification, got %+v", snap)
	}
}

func TestSubscriptionCloseStopsDelivery(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	ch := make(chan Snapshot, 8)
	sub, err := store.Subscribe(ctx, "users/u1", func(s Snapshot) { ch <- s })
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	recvSnapshot(t, ch)

	if err := sub.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	if err := store.Write(ctx, "users/u1", testDoc{Email: "late@b.co"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	select {
	case snap := <-ch:
		t.Fatalf("expected no delivery after Close, got %+v", snap)
	case <-time.After(100 * time.Millisecond):
	}
}
