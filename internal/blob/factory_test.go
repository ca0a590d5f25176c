package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func TestOpenSelectsDriverFromEnv(t *testing.T) {
	ctx := context.Background()

	t.Setenv("ROSTERCORE_BLOB_DRIVER", "memory")
	store, err := Open(ctx)
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("unexpected driver %s", store.Driver())
	}

	t.Setenv("ROSTERCORE_BLOB_DRIVER", "fs")
	t.Setenv("ROSTERCORE_BLOB_FS_ROOT", t.TempDir())
	store, err = Open(ctx)
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("unexpected driver %s", store.Driver())
	}

	t.Setenv("ROSTERCORE_BLOB_DRIVER", "bogus")
	if _, err := Open(ctx); err == nil {
		t.Fatalf("expected unknown driver error")
	}

	// s3 without a bucket configured fails fast.
	t.Setenv("ROSTERCORE_BLOB_DRIVER", "s3")
	t.Setenv("ROSTERCORE_BLOB_S3_BUCKET", "")
	if _, err := Open(ctx); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestMockS3RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMockS3ForTests()
	if store.Driver() != DriverS3 {
		t.Fatalf("unexpected driver %s", store.Driver())
	}

	// Missing keys surface the shared sentinel, same as the fs and memory backends.
	if _, _, err := store.Get(ctx, "snapshots/absent.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.Head(ctx, "snapshots/absent.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if existed, err := store.Delete(ctx, "snapshots/absent.json"); err != nil || existed {
		t.Fatalf("delete of absent key must report (false, nil), got (%v, %v)", existed, err)
	}

	payload := []byte(`{"groups":[]}`)
	info, err := store.Put(ctx, "snapshots/a.json", bytes.NewReader(payload), PutOptions{ContentType: "application/json"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(payload)) {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "snapshots/a.json", bytes.NewReader(payload), PutOptions{}); err == nil {
		t.Fatalf("expected create-only semantics")
	}

	got, body, err := store.Get(ctx, "snapshots/a.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(body)
	_ = body.Close()
	if !bytes.Equal(data, payload) {
		t.Fatalf("unexpected content %q", data)
	}
	if got.ContentType != "application/json" {
		t.Fatalf("unexpected content type %+v", got)
	}

	infos, err := store.List(ctx, "snapshots/")
	if err != nil || len(infos) != 1 || infos[0].Key != "snapshots/a.json" {
		t.Fatalf("unexpected listing %+v %v", infos, err)
	}

	existed, err := store.Delete(ctx, "snapshots/a.json")
	if err != nil || !existed {
		t.Fatalf("delete: (%v, %v)", existed, err)
	}
	if _, err := store.Head(ctx, "snapshots/a.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
