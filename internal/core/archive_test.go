package core

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"rostercore/internal/blob"
	"rostercore/pkg/domain"
)

func TestSnapshotArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(domain.DefaultExterns())

	alice, _, err := svc.AddUser(ctx, User{Username: "alice"})
	if err != nil {
		t.Fatalf("add alice: %v", err)
	}
	team, _, err := svc.AddGroup(ctx, Group{Name: "team", Mode: ModeEverybody})
	if err != nil {
		t.Fatalf("add group: %v", err)
	}
	if _, err := svc.AddMember(ctx, team.ID, alice.ID); err != nil {
		t.Fatalf("add member: %v", err)
	}

	archive := NewSnapshotArchive(blob.NewMemory(), "")
	info, err := archive.Archive(ctx, svc.Store())
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !strings.HasPrefix(info.Key, "snapshots/") || info.Size == 0 {
		t.Fatalf("unexpected archive info %+v", info)
	}
	if info.Metadata["users"] != "1" {
		t.Fatalf("unexpected metadata %+v", info.Metadata)
	}

	// Mutate past the snapshot, then restore into a fresh store.
	if _, _, err := svc.AddUser(ctx, User{Username: "bob"}); err != nil {
		t.Fatalf("add bob: %v", err)
	}

	restoredSvc := NewInMemoryService(domain.DefaultExterns())
	if err := archive.Restore(ctx, restoredSvc.Store(), info.Key); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, err := restoredSvc.FindUserByUsername(ctx, "alice"); err != nil {
		t.Fatalf("alice missing after restore: %v", err)
	}
	if _, err := restoredSvc.FindUserByUsername(ctx, "bob"); err == nil {
		t.Fatalf("bob must not exist in the restored snapshot")
	}

	listed, err := archive.List(ctx)
	if err != nil || len(listed) != 1 {
		t.Fatalf("list: %+v %v", listed, err)
	}
}

func TestSnapshotArchiveRestoreRejectsCorruptPayload(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	if _, err := store.Put(ctx, "snapshots/bad.json", bytes.NewReader([]byte("{")), blob.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}

	archive := NewSnapshotArchive(store, "")
	svc := NewInMemoryService(domain.DefaultExterns())
	if err := archive.Restore(ctx, svc.Store(), "snapshots/bad.json"); err == nil {
		t.Fatalf("expected decode error")
	}
	if err := archive.Restore(ctx, svc.Store(), "snapshots/missing.json"); err == nil {
		t.Fatalf("expected not found error")
	}
}

func TestSnapshotArchiveRestoreValidatesInvariants(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	payload := []byte(`{"users":[{"id":"u1","username":"dup"},{"id":"u2","username":"dup"}]}`)
	if _, err := store.Put(ctx, "snapshots/dup.json", bytes.NewReader(payload), blob.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}

	archive := NewSnapshotArchive(store, "")
	svc := NewInMemoryService(domain.DefaultExterns())
	if err := archive.Restore(ctx, svc.Store(), "snapshots/dup.json"); err == nil {
		t.Fatalf("expected invariant rejection")
	}
}
