package domain

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestBareTarget(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"bob@example.org/phone", "bob@example.org"},
		{"bob@example.org", "bob@example.org"},
		{"bob@example.org/a/b", "bob@example.org"},
		{"/leading", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := BareTarget(tc.in); got != tc.want {
			t.Fatalf("BareTarget(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExternsNormalized(t *testing.T) {
	var e Externs
	n := e.Normalized()
	if n.ResolveTarget == nil || n.DefaultAsk == nil || n.DefaultRecv == nil {
		t.Fatalf("expected all functions populated")
	}
	if n.DefaultAsk() != AskNone || n.DefaultRecv() != RecvNone {
		t.Fatalf("unexpected defaults")
	}

	custom := Externs{ResolveTarget: strings.ToLower}.Normalized()
	if custom.ResolveTarget("BOB") != "bob" {
		t.Fatalf("override must survive normalization")
	}
}

func TestRosterModeValid(t *testing.T) {
	for _, m := range []RosterMode{ModeNobody, ModeOnlyGroup, ModeEverybody} {
		if !m.Valid() {
			t.Fatalf("expected %s to be valid", m)
		}
	}
	if RosterMode("SOMETIMES").Valid() {
		t.Fatalf("unexpected valid mode")
	}
	if RosterMode("").Valid() {
		t.Fatalf("empty mode must be invalid")
	}
}

func TestResultMergeAndBlocking(t *testing.T) {
	var res Result
	res.Merge(Result{})
	if res.HasBlocking() {
		t.Fatalf("empty result must not block")
	}
	res.Merge(Result{Violations: []Violation{{Rule: "a", Severity: SeverityWarn}}})
	if res.HasBlocking() {
		t.Fatalf("warnings must not block")
	}
	res.Merge(Result{Violations: []Violation{{Rule: "b", Severity: SeverityBlock}}})
	if !res.HasBlocking() {
		t.Fatalf("expected blocking result")
	}
	if len(res.Violations) != 2 {
		t.Fatalf("expected merged violations, got %d", len(res.Violations))
	}
}

type staticRule struct {
	name string
	res  Result
	err  error
}

func (r staticRule) Name() string { return r.name }
func (r staticRule) Evaluate(context.Context, TransactionView, []Change) (Result, error) {
	return r.res, r.err
}

func TestRulesEngineAggregatesAndFailsFast(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{name: "warn", res: Result{Violations: []Violation{{Rule: "warn", Severity: SeverityWarn}}}})
	engine.Register(staticRule{name: "block", res: Result{Violations: []Violation{{Rule: "block", Severity: SeverityBlock}}}})

	res, err := engine.Evaluate(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 2 || !res.HasBlocking() {
		t.Fatalf("unexpected result %+v", res)
	}

	boom := errors.New("boom")
	engine.Register(staticRule{name: "broken", err: boom})
	if _, err := engine.Evaluate(context.Background(), nil, nil); !errors.Is(err, boom) {
		t.Fatalf("expected rule error to surface, got %v", err)
	}
}

func TestErrorMessages(t *testing.T) {
	pre := PreconditionError{Op: "AddUser", Entity: EntityUser, Key: "alice", Conflict: "username already in use"}
	if !strings.Contains(pre.Error(), "AddUser") || !strings.Contains(pre.Error(), "alice") {
		t.Fatalf("unexpected message %q", pre.Error())
	}
	bare := PreconditionError{Op: "RemoveUser", Entity: EntityUser, Key: "u1"}
	if strings.HasSuffix(bare.Error(), ": ") {
		t.Fatalf("message without conflict must not trail a colon: %q", bare.Error())
	}

	ie := IntegrityError{Entity: EntityUser, Key: "alice", Count: 2}
	if !strings.Contains(ie.Error(), "found 2") {
		t.Fatalf("unexpected message %q", ie.Error())
	}

	rve := RuleViolationError{Result: Result{Violations: []Violation{{Rule: "unique_username", Severity: SeverityBlock}}}}
	if rve.Error() == "" {
		t.Fatalf("expected error string")
	}
}
