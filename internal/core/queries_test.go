package core

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"rostercore/pkg/domain"
)

func newQueries(view fakeView) *Queries {
	return NewQueries(view, domain.DefaultExterns())
}

func TestFindUserByUsernameCardinality(t *testing.T) {
	q := newQueries(fakeView{users: []User{user("u1", "alice"), user("u2", "bob")}})

	found, err := q.FindUserByUsername("alice")
	if err != nil {
		t.Fatalf("find alice: %v", err)
	}
	if found.ID != "u1" {
		t.Fatalf("unexpected user %+v", found)
	}

	_, err = q.FindUserByUsername("carol")
	var ie domain.IntegrityError
	if !errors.As(err, &ie) || ie.Count != 0 {
		t.Fatalf("expected zero-match integrity error, got %v", err)
	}

	// A corrupted snapshot with duplicate usernames also surfaces as an
	// integrity error rather than an arbitrary pick.
	dup := newQueries(fakeView{users: []User{user("u1", "alice"), user("u2", "alice")}})
	_, err = dup.FindUserByUsername("alice")
	if !errors.As(err, &ie) || ie.Count != 2 {
		t.Fatalf("expected duplicate integrity error, got %v", err)
	}
}

func TestGroupVisibilityModes(t *testing.T) {
	view := fakeView{
		users: []User{user("u1", "alice"), user("u2", "bob")},
		groups: []Group{
			group("open", "open", ModeEverybody),
			group("closed", "closed", ModeNobody),
			group("shared", "shared", ModeOnlyGroup),
		},
		members: []Membership{
			{GroupID: "closed", UserID: "u1"},
			{GroupID: "shared", UserID: "u1"},
		},
	}
	q := newQueries(view)

	if !q.GroupIsVisible("open", "u2") {
		t.Fatalf("EVERYBODY group must be visible to non-members")
	}
	// NOBODY hides the group even from its own members.
	if q.GroupIsVisible("closed", "u1") {
		t.Fatalf("NOBODY group must not be visible to members")
	}
	if !q.GroupIsVisible("shared", "u1") {
		t.Fatalf("ONLY_GROUP group must be visible to direct members")
	}
	if q.GroupIsVisible("shared", "u2") {
		t.Fatalf("ONLY_GROUP group must not be visible to outsiders")
	}
	if q.GroupIsVisible("missing", "u1") {
		t.Fatalf("unknown group must not be visible")
	}
}

func TestGroupVisibilityIsOneHopOnly(t *testing.T) {
	// grandparent <- parent <- leaf, all ONLY_GROUP; alice is a member of
	// leaf only. Membership of a direct child grants visibility; membership
	// two levels down does not propagate.
	view := fakeView{
		users: []User{user("u1", "alice")},
		groups: []Group{
			group("grandparent", "grandparent", ModeOnlyGroup),
			group("parent", "parent", ModeOnlyGroup),
			group("leaf", "leaf", ModeOnlyGroup),
		},
		childGroups: []GroupPair{
			{ParentID: "grandparent", ChildID: "parent"},
			{ParentID: "parent", ChildID: "leaf"},
		},
		members: []Membership{{GroupID: "leaf", UserID: "u1"}},
	}
	q := newQueries(view)

	if !q.GroupIsVisible("leaf", "u1") {
		t.Fatalf("direct membership must grant visibility")
	}
	if !q.GroupIsVisible("parent", "u1") {
		t.Fatalf("membership of a direct child must grant visibility")
	}
	if q.GroupIsVisible("grandparent", "u1") {
		t.Fatalf("visibility must not propagate through two nesting levels")
	}
}

func TestHasSubscriptionToIsAsymmetric(t *testing.T) {
	view := fakeView{
		users: []User{user("u1", "alice"), user("u2", "bob")},
		rosterItems: []RosterItem{
			rosterItem("r1", "1", "alice", "bob/phone"),
		},
	}
	q := newQueries(view)

	if !q.HasSubscriptionTo("u1", "u2") {
		t.Fatalf("explicit item must grant subscription")
	}
	if q.HasSubscriptionTo("u2", "u1") {
		t.Fatalf("subscription must not be mirrored")
	}
	if q.HasSubscriptionTo("u1", "u1") {
		t.Fatalf("self subscription must always be false")
	}
}

func TestSharedGroupsDeriveSubscription(t *testing.T) {
	// bob is a member of a group visible to alice, so alice has a derived
	// subscription to bob without any explicit roster item.
	view := fakeView{
		users:  []User{user("u1", "alice"), user("u2", "bob"), user("u3", "carol")},
		groups: []Group{group("g1", "team", ModeOnlyGroup)},
		members: []Membership{
			{GroupID: "g1", UserID: "u1"},
			{GroupID: "g1", UserID: "u2"},
		},
	}
	q := newQueries(view)

	shared := q.SharedGroups("u1", "u2")
	if len(shared) != 1 || shared[0].ID != "g1" {
		t.Fatalf("unexpected shared groups %+v", shared)
	}
	if !q.HasSubscriptionTo("u1", "u2") || !q.HasSubscriptionTo("u2", "u1") {
		t.Fatalf("mutual members of a visible group subscribe to each other")
	}
	if q.HasSubscriptionTo("u1", "u3") {
		t.Fatalf("carol shares no group with alice")
	}

	watching := q.UsersWatchingGroup("g1")
	if len(watching) != 2 {
		t.Fatalf("expected both members watching, got %+v", watching)
	}
}

func TestRosterFoldsBothDirections(t *testing.T) {
	view := fakeView{
		users: []User{
			user("u1", "alice"),
			user("u2", "bob"),
			user("u3", "carol"),
			user("u4", "dave"),
		},
		rosterItems: []RosterItem{
			// alice -> bob with a nickname and a pending outgoing request.
			{Base: domain.Base{ID: "r1"}, BackendID: "1", Owner: "alice", Target: "bob",
				Nickname: "Bobby", Ask: domain.AskSubscribe, Recv: domain.RecvNone},
			// carol -> alice gives alice a from-only edge.
			{Base: domain.Base{ID: "r2"}, BackendID: "2", Owner: "carol", Target: "alice",
				Ask: domain.AskNone, Recv: domain.RecvNone},
		},
		groups: []Group{group("g1", "team", ModeOnlyGroup)},
		members: []Membership{
			{GroupID: "g1", UserID: "u1"},
			{GroupID: "g1", UserID: "u2"},
		},
	}
	q := newQueries(view)

	entries, err := q.Roster("u1")
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	want := []RosterViewEntry{
		{Username: "bob", Nickname: "Bobby", Subscription: domain.SubscriptionBoth,
			Ask: domain.AskSubscribe, Recv: domain.RecvNone},
		{Username: "carol", Subscription: domain.SubscriptionFrom,
			Ask: domain.AskNone, Recv: domain.RecvNone},
	}
	if diff := cmp.Diff(want, entries, cmpopts.IgnoreFields(RosterViewEntry{}, "Item")); diff != "" {
		t.Fatalf("roster mismatch (-want +got):\n%s", diff)
	}
	if entries[0].Item == nil || entries[0].Item.ID != "r1" {
		t.Fatalf("expected explicit item attached to bob's entry")
	}
	if entries[1].Item != nil {
		t.Fatalf("carol's entry must not carry alice's item")
	}

	// dave has no edges and no roster.
	empty, err := q.Roster("u4")
	if err != nil {
		t.Fatalf("roster dave: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty roster, got %+v", empty)
	}

	if _, err := q.Roster("missing"); err == nil {
		t.Fatalf("expected integrity error for unknown user")
	}
}

func TestRosterEntryDefaultsWithoutItem(t *testing.T) {
	view := fakeView{
		users:  []User{user("u1", "alice"), user("u2", "bob")},
		groups: []Group{group("g1", "team", ModeEverybody)},
		members: []Membership{
			{GroupID: "g1", UserID: "u2"},
		},
	}
	q := newQueries(view)

	entry, err := q.RosterEntry("u1", "u2")
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	if entry.Subscription != domain.SubscriptionTo {
		t.Fatalf("expected to-only subscription, got %+v", entry)
	}
	if entry.Ask != domain.AskNone || entry.Recv != domain.RecvNone {
		t.Fatalf("expected extern defaults on item-less entry, got %+v", entry)
	}
	if entry.Item != nil {
		t.Fatalf("no explicit item expected")
	}
}
