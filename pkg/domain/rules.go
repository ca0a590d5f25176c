package domain

import "context"

// TransactionView provides read-only access to a consistent snapshot of the
// relation store. Rules and derived queries are evaluated exclusively against
// this interface; the snapshot cannot change mid-evaluation.
type TransactionView interface {
	ListUsers() []User
	ListRosterItems() []RosterItem
	ListGroups() []Group
	ListChildGroups() []GroupPair
	ListGroupMembers() []Membership
	ListAdmins() []Membership
	FindUser(id string) (User, bool)
	FindRosterItem(id string) (RosterItem, bool)
	FindGroup(id string) (Group, bool)
}

// Rule defines an invariant evaluated within a transaction boundary.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view TransactionView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view TransactionView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
