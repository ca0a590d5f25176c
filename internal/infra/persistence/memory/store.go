// Package memory provides the in-memory relation store that backs rostercore.
// It is the reference implementation of the persistence contract and the
// transactional engine reused by the durable backends.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"rostercore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// User aliases domain.User for in-memory persistence operations.
	User = domain.User
	// RosterItem aliases domain.RosterItem.
	RosterItem = domain.RosterItem
	// Group aliases domain.Group.
	Group = domain.Group
	// GroupPair aliases domain.GroupPair.
	GroupPair = domain.GroupPair
	// Membership aliases domain.Membership.
	Membership = domain.Membership
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate invariants.
	RulesEngine = domain.RulesEngine
	// Snapshot aliases domain.Snapshot.
	Snapshot = domain.Snapshot
	// Transaction aliases domain.Transaction.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView.
	TransactionView = domain.TransactionView
)

// memoryState is one consistent value of the relation store: the entity bags
// keyed by handle ID plus the pairwise relations.
type memoryState struct {
	users        map[string]User
	rosterItems  map[string]RosterItem
	groups       map[string]Group
	childGroups  map[GroupPair]struct{}
	groupMembers map[Membership]struct{}
	admins       map[Membership]struct{}
}

func newMemoryState() memoryState {
	return memoryState{
		users:        make(map[string]User),
		rosterItems:  make(map[string]RosterItem),
		groups:       make(map[string]Group),
		childGroups:  make(map[GroupPair]struct{}),
		groupMembers: make(map[Membership]struct{}),
		admins:       make(map[Membership]struct{}),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.users {
		cloned.users[k] = v
	}
	for k, v := range s.rosterItems {
		cloned.rosterItems[k] = v
	}
	for k, v := range s.groups {
		cloned.groups[k] = v
	}
	for p := range s.childGroups {
		cloned.childGroups[p] = struct{}{}
	}
	for m := range s.groupMembers {
		cloned.groupMembers[m] = struct{}{}
	}
	for m := range s.admins {
		cloned.admins[m] = struct{}{}
	}
	return cloned
}

// Store is the in-memory transactional relation store. A single RWMutex
// guards the committed state: writers clone it, apply the transaction body to
// the clone, and swap it in only after every invariant passes.
type Store struct {
	mu      sync.RWMutex
	state   memoryState
	engine  *RulesEngine
	externs domain.Externs
	nowFn   func() time.Time
}

// NewStore constructs an in-memory store gated by the provided rules engine.
func NewStore(engine *RulesEngine, externs domain.Externs) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:   newMemoryState(),
		engine:  engine,
		externs: externs.Normalized(),
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// newID allocates a fresh handle identity. IDs are random and never reissued
// while the process lives.
func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// transaction applies a mutation set to a cloned state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

var _ Transaction = (*transaction)(nil)

// transactionView exposes a read-only snapshot of a state to rules and queries.
type transactionView struct {
	state *memoryState
}

var _ TransactionView = transactionView{}

// ListUsers returns all users within the snapshot, ordered by handle ID.
func (v transactionView) ListUsers() []User {
	out := make([]User, 0, len(v.state.users))
	for _, u := range v.state.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListRosterItems returns all roster items, ordered by handle ID.
func (v transactionView) ListRosterItems() []RosterItem {
	out := make([]RosterItem, 0, len(v.state.rosterItems))
	for _, it := range v.state.rosterItems {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListGroups returns all groups, ordered by handle ID.
func (v transactionView) ListGroups() []Group {
	out := make([]Group, 0, len(v.state.groups))
	for _, g := range v.state.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListChildGroups returns all parent/child pairs.
func (v transactionView) ListChildGroups() []GroupPair {
	out := make([]GroupPair, 0, len(v.state.childGroups))
	for p := range v.state.childGroups {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ParentID != out[j].ParentID {
			return out[i].ParentID < out[j].ParentID
		}
		return out[i].ChildID < out[j].ChildID
	})
	return out
}

// ListGroupMembers returns all membership pairs.
func (v transactionView) ListGroupMembers() []Membership {
	return sortedMemberships(v.state.groupMembers)
}

// ListAdmins returns all administrator pairs.
func (v transactionView) ListAdmins() []Membership {
	return sortedMemberships(v.state.admins)
}

func sortedMemberships(set map[Membership]struct{}) []Membership {
	out := make([]Membership, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GroupID != out[j].GroupID {
			return out[i].GroupID < out[j].GroupID
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// FindUser retrieves a user by handle ID from the snapshot.
func (v transactionView) FindUser(id string) (User, bool) {
	u, ok := v.state.users[id]
	return u, ok
}

// FindRosterItem retrieves a roster item by handle ID.
func (v transactionView) FindRosterItem(id string) (RosterItem, bool) {
	it, ok := v.state.rosterItems[id]
	return it, ok
}

// FindGroup retrieves a group by handle ID.
func (v transactionView) FindGroup(id string) (Group, bool) {
	g, ok := v.state.groups[id]
	return g, ok
}

// RunInTransaction executes fn against a cloned state, evaluates every
// registered invariant against the candidate, and commits only when no
// blocking violation is present. Any error leaves the committed state
// untouched; the candidate clone is simply discarded.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := transactionView{state: &tx.state}
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the committed state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(transactionView{state: &snapshot})
}

// ExportState returns the committed state as a serializable snapshot.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view := transactionView{state: &s.state}
	return Snapshot{
		Users:        view.ListUsers(),
		RosterItems:  view.ListRosterItems(),
		Groups:       view.ListGroups(),
		ChildGroups:  view.ListChildGroups(),
		GroupMembers: view.ListGroupMembers(),
		Admins:       view.ListAdmins(),
	}
}

// ImportState replaces the committed state with the snapshot after validating
// it against every registered invariant. A snapshot carrying a blocking
// violation is rejected and the current state is kept.
func (s *Store) ImportState(ctx context.Context, snapshot Snapshot) error {
	state := newMemoryState()
	for _, u := range snapshot.Users {
		state.users[u.ID] = u
	}
	for _, it := range snapshot.RosterItems {
		state.rosterItems[it.ID] = it
	}
	for _, g := range snapshot.Groups {
		state.groups[g.ID] = g
	}
	for _, p := range snapshot.ChildGroups {
		state.childGroups[p] = struct{}{}
	}
	for _, m := range snapshot.GroupMembers {
		state.groupMembers[m] = struct{}{}
	}
	for _, m := range snapshot.Admins {
		state.admins[m] = struct{}{}
	}

	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, transactionView{state: &state}, nil)
		if err != nil {
			return err
		}
		if res.HasBlocking() {
			return domain.RuleViolationError{Result: res}
		}
	}

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	return nil
}

// Externs returns the host-supplied function set the store was built with.
func (s *Store) Externs() domain.Externs { return s.externs }

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot exposes the transaction's candidate state as a read-only view.
func (tx *transaction) Snapshot() TransactionView {
	return transactionView{state: &tx.state}
}
