// Package core wires the roster invariants, the derived-query evaluator, and
// the transactional service exposed to host programs.
package core

import "rostercore/pkg/domain"

// NewDefaultRulesEngine builds a rules engine carrying the closed invariant
// set of the roster model. Every rule is blocking: a violating candidate
// state is discarded at commit.
func NewDefaultRulesEngine(externs Externs) *RulesEngine {
	externs = externs.Normalized()
	engine := domain.NewRulesEngine()
	engine.Register(UniqueUsernameRule())
	engine.Register(UniqueRosterKeysRule(externs))
	engine.Register(UniqueGroupNameRule())
	engine.Register(SharedGroupModeRule())
	engine.Register(ReferentialIntegrityRule())
	return engine
}
