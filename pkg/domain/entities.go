// Package domain defines the roster entities, relation pairs, and the rule
// evaluation primitives used by rostercore.
package domain

import "time"

// EntityType identifies the kind of record stored in the relation store.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityUser identifies a user account record.
	EntityUser EntityType = "user"
	// EntityRosterItem identifies an explicit roster item record.
	EntityRosterItem EntityType = "roster_item"
	// EntityGroup identifies a contact group record.
	EntityGroup EntityType = "group"
	// EntityChildGroup identifies a parent/child group pair.
	EntityChildGroup EntityType = "child_group"
	// EntityGroupMember identifies a group membership pair.
	EntityGroupMember EntityType = "group_member"
	// EntityAdmin identifies a group administrator pair.
	EntityAdmin EntityType = "admin"
)

// RosterMode controls who a group's membership is shared with.
type RosterMode string

// Group visibility modes.
const (
	// ModeNobody keeps the group private.
	ModeNobody RosterMode = "NOBODY"
	// ModeOnlyGroup shares the group with its members and the members of
	// directly attached child groups.
	ModeOnlyGroup RosterMode = "ONLY_GROUP"
	// ModeEverybody shares the group with every user.
	ModeEverybody RosterMode = "EVERYBODY"
)

// Valid reports whether m is one of the declared visibility modes.
func (m RosterMode) Valid() bool {
	switch m {
	case ModeNobody, ModeOnlyGroup, ModeEverybody:
		return true
	}
	return false
}

// AskStatus tracks an outgoing subscription request on a roster item.
type AskStatus string

// Outgoing subscription request states.
const (
	AskNone      AskStatus = "none"
	AskSubscribe AskStatus = "subscribe"
)

// RecvStatus tracks an incoming subscription request on a roster item.
type RecvStatus string

// Incoming subscription request states.
const (
	RecvNone        RecvStatus = "none"
	RecvSubscribe   RecvStatus = "subscribe"
	RecvUnsubscribe RecvStatus = "unsubscribe"
)

// SubscriptionState is the folded two-directional subscription of a roster
// view entry.
type SubscriptionState string

// Folded subscription states combining both directions.
const (
	SubscriptionNone SubscriptionState = "none"
	SubscriptionTo   SubscriptionState = "to"
	SubscriptionFrom SubscriptionState = "from"
	SubscriptionBoth SubscriptionState = "both"
)

// Base contains common fields for all roster records. The ID is the record's
// handle: assigned once at creation, never reused, and the only value that
// relations and equality checks consult.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User represents an account known to the roster subsystem.
type User struct {
	Base
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// RosterItem is an explicit contact entry owned by one user and pointing at a
// structured target identifier. The (owner, resolved target) pair and the
// backend ID are both unique across the store.
type RosterItem struct {
	Base
	BackendID string     `json:"backend_id"`
	Owner     string     `json:"owner"`
	Target    string     `json:"target"`
	Nickname  string     `json:"nickname"`
	Ask       AskStatus  `json:"ask"`
	Recv      RecvStatus `json:"recv"`
}

// Group is a named contact group with a visibility mode.
type Group struct {
	Base
	Name        string     `json:"name"`
	DisplayName string     `json:"display_name"`
	Description string     `json:"description"`
	Mode        RosterMode `json:"mode"`
}

// GroupPair links a parent group to a directly nested child group. Only
// meaningful while the parent's mode is ModeOnlyGroup.
type GroupPair struct {
	ParentID string `json:"parent_id"`
	ChildID  string `json:"child_id"`
}

// Membership links a group to a user, either as member or administrator
// depending on the relation it is stored in.
type Membership struct {
	GroupID string `json:"group_id"`
	UserID  string `json:"user_id"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate the mutations captured in the audit trail.
const (
	// ActionCreate indicates a record or pair was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates a record payload was mutated in place.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn records a warning but allows commit.
	SeverityWarn Severity = "warn"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by invariants"
}
