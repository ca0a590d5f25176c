package core

import (
	"context"
	"fmt"

	"rostercore/pkg/domain"
)

// ReferentialIntegrityRule enforces that every handle appearing in the
// pairwise relations refers to a live record. Disposal never cascades, so a
// dangling reference can only mean an operation bypassed its precondition.
func ReferentialIntegrityRule() domain.Rule {
	return referentialIntegrityRule{}
}

type referentialIntegrityRule struct{}

func (referentialIntegrityRule) Name() string { return "referential_integrity" }

func (referentialIntegrityRule) Evaluate(_ context.Context, view domain.TransactionView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}

	for _, pair := range view.ListChildGroups() {
		if _, ok := view.FindGroup(pair.ParentID); !ok {
			res.Violations = append(res.Violations, danglingViolation(domain.EntityChildGroup, domain.EntityGroup, pair.ParentID))
		}
		if _, ok := view.FindGroup(pair.ChildID); !ok {
			res.Violations = append(res.Violations, danglingViolation(domain.EntityChildGroup, domain.EntityGroup, pair.ChildID))
		}
	}
	checkMemberships := func(relation domain.EntityType, pairs []domain.Membership) {
		for _, m := range pairs {
			if _, ok := view.FindGroup(m.GroupID); !ok {
				res.Violations = append(res.Violations, danglingViolation(relation, domain.EntityGroup, m.GroupID))
			}
			if _, ok := view.FindUser(m.UserID); !ok {
				res.Violations = append(res.Violations, danglingViolation(relation, domain.EntityUser, m.UserID))
			}
		}
	}
	checkMemberships(domain.EntityGroupMember, view.ListGroupMembers())
	checkMemberships(domain.EntityAdmin, view.ListAdmins())

	return res, nil
}

func danglingViolation(relation, entity domain.EntityType, id string) domain.Violation {
	return domain.Violation{
		Rule:     "referential_integrity",
		Severity: domain.SeverityBlock,
		Message:  fmt.Sprintf("%s pair references %s %s which is not live", relation, entity, id),
		Entity:   relation,
		EntityID: id,
	}
}
