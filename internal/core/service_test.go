package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"rostercore/pkg/domain"
)

func TestServiceEndToEndRosterFlow(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(domain.DefaultExterns())

	alice, _, err := svc.AddUser(ctx, User{Username: "alice"})
	if err != nil {
		t.Fatalf("add alice: %v", err)
	}
	bob, _, err := svc.AddUser(ctx, User{Username: "bob"})
	if err != nil {
		t.Fatalf("add bob: %v", err)
	}

	team, _, err := svc.AddGroup(ctx, Group{Name: "team", Mode: ModeOnlyGroup})
	if err != nil {
		t.Fatalf("add group: %v", err)
	}
	if _, err := svc.AddMember(ctx, team.ID, alice.ID); err != nil {
		t.Fatalf("add alice to team: %v", err)
	}
	if _, err := svc.AddMember(ctx, team.ID, bob.ID); err != nil {
		t.Fatalf("add bob to team: %v", err)
	}

	visible, err := svc.GroupIsVisible(ctx, team.ID, alice.ID)
	if err != nil || !visible {
		t.Fatalf("expected team visible to alice: %v %v", visible, err)
	}
	has, err := svc.HasSubscriptionTo(ctx, alice.ID, bob.ID)
	if err != nil || !has {
		t.Fatalf("expected derived subscription via shared group: %v %v", has, err)
	}

	roster, err := svc.Roster(ctx, alice.ID)
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	if len(roster) != 1 || roster[0].Username != "bob" || roster[0].Subscription != SubscriptionBoth {
		t.Fatalf("unexpected roster %+v", roster)
	}

	found, err := svc.FindUserByUsername(ctx, "bob")
	if err != nil || found.ID != bob.ID {
		t.Fatalf("find bob: %+v %v", found, err)
	}

	// Item mutations flow through the same transactional path.
	item, _, err := svc.AddRosterItem(ctx, RosterItem{BackendID: "1", Owner: "alice", Target: "bob"})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if _, _, err := svc.SetNickname(ctx, item.ID, "Bobby"); err != nil {
		t.Fatalf("set nickname: %v", err)
	}
	if _, _, err := svc.SetAskStatus(ctx, item.ID, domain.AskSubscribe); err != nil {
		t.Fatalf("set ask: %v", err)
	}
	entry, err := svc.RosterEntry(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	if entry.Nickname != "Bobby" || entry.Ask != domain.AskSubscribe {
		t.Fatalf("expected item fields folded into entry, got %+v", entry)
	}
}

func TestServiceObservabilityRecordsOutcomes(t *testing.T) {
	ctx := context.Background()
	metrics := NewExpvarMetricsRecorder("")
	var traceBuf bytes.Buffer
	tracer := NewJSONTracer(&traceBuf)
	var logBuf bytes.Buffer
	logger := testLogger{buf: &logBuf}

	svc := NewInMemoryService(domain.DefaultExterns(),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
		WithLogger(logger),
	)

	if _, _, err := svc.AddUser(ctx, User{Username: "alice"}); err != nil {
		t.Fatalf("add user: %v", err)
	}
	// Duplicate username fails and must land in the error counters.
	if _, _, err := svc.AddUser(ctx, User{Username: "alice"}); err == nil {
		t.Fatalf("expected duplicate username error")
	}

	snap := metrics.Snapshot()
	if snap.Results["add_user"]["success"] != 1 || snap.Results["add_user"]["error"] != 1 {
		t.Fatalf("unexpected metrics %+v", snap.Results)
	}

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(entries))
	}
	if entries[0].Status != "success" || entries[1].Status != "error" {
		t.Fatalf("unexpected span statuses %+v", entries)
	}
	if !strings.Contains(traceBuf.String(), `"operation":"add_user"`) {
		t.Fatalf("expected encoded spans, got %s", traceBuf.String())
	}
	if !strings.Contains(logBuf.String(), "add_user") {
		t.Fatalf("expected failed operation in log, got %q", logBuf.String())
	}
}

type testLogger struct {
	buf *bytes.Buffer
}

func (l testLogger) Printf(format string, args ...any) {
	fmt.Fprintf(l.buf, format+"\n", args...)
}

func TestServiceSurfacesRuleViolations(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(domain.DefaultExterns())

	if _, _, err := svc.AddUser(ctx, User{Username: "alice"}); err != nil {
		t.Fatalf("add alice: %v", err)
	}
	bob, _, err := svc.AddUser(ctx, User{Username: "bob"})
	if err != nil {
		t.Fatalf("add bob: %v", err)
	}

	// Renaming past the AddUser guard is caught by the invariant at commit.
	_, _, err = svc.SetUserDisplayName(ctx, bob.ID, "Bob")
	if err != nil {
		t.Fatalf("display name: %v", err)
	}
	_, err = svc.Store().RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateUser(bob.ID, func(u *User) error {
			u.Username = "alice"
			return nil
		})
		return err
	})
	var rve domain.RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if rve.Result.Violations[0].Rule != "unique_username" {
		t.Fatalf("unexpected rule %+v", rve.Result.Violations)
	}
}
