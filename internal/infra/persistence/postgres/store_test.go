package postgres_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"rostercore/internal/core"
	"rostercore/internal/infra/persistence/postgres"
	"rostercore/internal/infra/persistence/postgres/testutil"
	"rostercore/pkg/domain"
	archtestutil "rostercore/testutil"
)

func openStubStore(t *testing.T) (*postgres.Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := postgres.OverrideSQLOpen(func(string, string) (*sql.DB, error) {
		return db, nil
	})
	t.Cleanup(restore)

	externs := domain.DefaultExterns()
	store, err := postgres.NewStore("postgres://stub", core.NewDefaultRulesEngine(externs), externs)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store, conn
}

func TestTransactionUpsertsAllBuckets(t *testing.T) {
	ctx := context.Background()
	store, conn := openStubStore(t)

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		u, err := tx.AddUser(domain.User{Username: "alice"})
		if err != nil {
			return err
		}
		g, err := tx.AddGroup(domain.Group{Name: "team", Mode: domain.ModeEverybody})
		if err != nil {
			return err
		}
		return tx.AddMember(g.ID, u.ID)
	}); err != nil {
		t.Fatalf("transaction: %v", err)
	}

	for _, bucket := range []string{"users", "roster_items", "groups", "child_groups", "group_members", "admins"} {
		if _, ok := conn.Buckets[bucket]; !ok {
			t.Fatalf("bucket %s not persisted", bucket)
		}
	}
	var users []domain.User
	if err := json.Unmarshal(conn.Buckets["users"], &users); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if len(users) != 1 || users[0].Username != "alice" {
		t.Fatalf("unexpected users payload %+v", users)
	}
}

func TestOpenHydratesFromExistingSnapshot(t *testing.T) {
	ctx := context.Background()
	db, conn := testutil.NewStubDB()
	payload, err := json.Marshal([]domain.User{{Base: domain.Base{ID: "u1"}, Username: "alice"}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	conn.Buckets["users"] = payload

	restore := postgres.OverrideSQLOpen(func(string, string) (*sql.DB, error) {
		return db, nil
	})
	defer restore()

	externs := domain.DefaultExterns()
	store, err := postgres.NewStore("", core.NewDefaultRulesEngine(externs), externs)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.View(ctx, func(view domain.TransactionView) error {
		u, ok := view.FindUser("u1")
		if !ok || u.Username != "alice" {
			t.Fatalf("expected hydrated user, got %+v", u)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestOpenRejectsInconsistentSnapshot(t *testing.T) {
	db, conn := testutil.NewStubDB()
	payload, err := json.Marshal([]domain.User{
		{Base: domain.Base{ID: "u1"}, Username: "dup"},
		{Base: domain.Base{ID: "u2"}, Username: "dup"},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	conn.Buckets["users"] = payload

	restore := postgres.OverrideSQLOpen(func(string, string) (*sql.DB, error) {
		return db, nil
	})
	defer restore()

	externs := domain.DefaultExterns()
	if _, err := postgres.NewStore("", core.NewDefaultRulesEngine(externs), externs); err == nil {
		t.Fatalf("expected inconsistent snapshot to fail the open")
	}
}

func TestFailedCommitSurfacesError(t *testing.T) {
	ctx := context.Background()
	store, conn := openStubStore(t)
	conn.FailCommit = true

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.AddUser(domain.User{Username: "alice"})
		return err
	}); err == nil {
		t.Fatalf("expected commit failure to surface")
	}
}

func TestStoreDoesNotDependOnServiceLayer(t *testing.T) {
	archtestutil.AssertNoDirectImports(t, ".", archtestutil.CoreImportForbidden,
		"persistence backends depend only on pkg/domain")
}
