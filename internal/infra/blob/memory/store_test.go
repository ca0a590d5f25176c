package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"rostercore/internal/blob/core"
)

func TestMemoryStoreSemantics(t *testing.T) {
	ctx := context.Background()
	store := New()
	if store.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", store.Driver())
	}

	info, err := store.Put(ctx, "k1", bytes.NewReader([]byte("hello")), core.PutOptions{ContentType: "text/plain"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 5 {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "k1", bytes.NewReader(nil), core.PutOptions{}); err == nil {
		t.Fatalf("expected create-only semantics")
	}

	_, body, err := store.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(body)
	_ = body.Close()
	if string(data) != "hello" {
		t.Fatalf("unexpected content %q", data)
	}

	if _, err := store.Head(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if _, err := store.Put(ctx, "k2", bytes.NewReader([]byte("x")), core.PutOptions{}); err != nil {
		t.Fatalf("put k2: %v", err)
	}
	infos, err := store.List(ctx, "k")
	if err != nil || len(infos) != 2 || infos[0].Key != "k1" {
		t.Fatalf("unexpected listing %+v %v", infos, err)
	}

	existed, err := store.Delete(ctx, "k1")
	if err != nil || !existed {
		t.Fatalf("delete: %v %v", existed, err)
	}
	existed, err = store.Delete(ctx, "k1")
	if err != nil || existed {
		t.Fatalf("second delete must report absent")
	}
}
