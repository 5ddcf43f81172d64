package fs

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"haccpcore/internal/blob/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	info, err := store.Put(ctx, "plans/p-1.json", strings.NewReader(`{"a":1}`), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"draft": "d-1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 7 || info.ETag == "" {
		t.Fatalf("unexpected put info: %+v", info)
	}

	got, rc, err := store.Get(ctx, "plans/p-1.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Fatalf("payload = %q", data)
	}
	if got.ContentType != "application/json" || got.Metadata["draft"] != "d-1" {
		t.Fatalf("sidecar not honored: %+v", got)
	}
}

func TestPutReplacesExistingObject(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Put(ctx, "plans/p-1.json", strings.NewReader("v1"), core.PutOptions{}); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if _, err := store.Put(ctx, "plans/p-1.json", strings.NewReader("v2"), core.PutOptions{}); err != nil {
		t.Fatalf("second put: %v", err)
	}
	_, rc, err := store.Get(ctx, "plans/p-1.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	data, _ := io.ReadAll(rc)
	if string(data) != "v2" {
		t.Fatalf("rewrite not applied, got %q", data)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, _, err := store.Get(context.Background(), "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestKeySanitization(t *testing.T) {
	store := newTestStore(t)
	for _, key := range []string{"", "  ", "../escape", "/abs/path", "a/../../b"} {
		if _, err := store.Put(context.Background(), key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("key %q must be rejected", key)
		}
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.Put(ctx, "k", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	removed, err := store.Delete(ctx, "k")
	if err != nil || !removed {
		t.Fatalf("first delete: removed=%v err=%v", removed, err)
	}
	removed, err = store.Delete(ctx, "k")
	if err != nil || removed {
		t.Fatalf("second delete must be a no-op: removed=%v err=%v", removed, err)
	}
}

func TestListFiltersAndSorts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for _, key := range []string{"plans/b.json", "plans/a.json", "other/c.json"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "plans/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "plans/a.json" || infos[1].Key != "plans/b.json" {
		t.Fatalf("unexpected listing: %+v", infos)
	}
}

func TestPresignSupportsGetOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	url, err := store.PresignURL(ctx, "plans/p.json", core.SignedURLOptions{})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.Contains(url, "plans/p.json") {
		t.Fatalf("url = %q", url)
	}
	if _, err := store.PresignURL(ctx, "plans/p.json", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("non-GET presign must be unsupported, got %v", err)
	}
}
