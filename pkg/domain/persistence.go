package domain

import "context"

// Transaction exposes the mutation operations a store must support within an
// atomic scope. Preconditions are checked against the transaction's candidate
// snapshot and reported as PreconditionError; the global invariants are
// evaluated by the store after the transaction body returns.
type Transaction interface {
	Snapshot() TransactionView

	AddUser(User) (User, error)
	UpdateUser(id string, mutator func(*User) error) (User, error)
	RemoveUser(id string) error

	AddRosterItem(RosterItem) (RosterItem, error)
	UpdateRosterItem(id string, mutator func(*RosterItem) error) (RosterItem, error)
	RemoveRosterItem(id string) error

	AddGroup(Group) (Group, error)
	UpdateGroup(id string, mutator func(*Group) error) (Group, error)
	RemoveGroup(id string) error
	SetGroupMode(id string, mode RosterMode) (Group, error)

	AddMember(groupID, userID string) error
	RemoveMember(groupID, userID string) error
	AddAdmin(groupID, userID string) error
	RemoveAdmin(groupID, userID string) error
	AddChildGroup(parentID, childID string) error
	RemoveChildGroup(parentID, childID string) error
}

// Snapshot is the serializable form of the full relation store. Persistence
// backends store it as JSON buckets; any loaded snapshot must pass every
// invariant before being accepted.
type Snapshot struct {
	Users        []User       `json:"users"`
	RosterItems  []RosterItem `json:"roster_items"`
	Groups       []Group      `json:"groups"`
	ChildGroups  []GroupPair  `json:"child_groups"`
	GroupMembers []Membership `json:"group_members"`
	Admins       []Membership `json:"admins"`
}

// PersistentStore is the minimal abstraction over storage backends. It
// mirrors the subset of store capabilities used by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	ExportState() Snapshot
	ImportState(ctx context.Context, snapshot Snapshot) error
}
