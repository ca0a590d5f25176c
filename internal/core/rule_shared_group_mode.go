package core

import (
	"context"
	"fmt"

	"rostercore/pkg/domain"
)

// SharedGroupModeRule enforces that every child-group pair's parent is in
// ModeOnlyGroup. Nesting under a private or everybody-visible group would
// make the one-hop visibility check ambiguous.
func SharedGroupModeRule() domain.Rule {
	return sharedGroupModeRule{}
}

type sharedGroupModeRule struct{}

func (sharedGroupModeRule) Name() string { return "shared_group_mode" }

func (sharedGroupModeRule) Evaluate(_ context.Context, view domain.TransactionView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, pair := range view.ListChildGroups() {
		parent, ok := view.FindGroup(pair.ParentID)
		if !ok {
			// Dangling parents are reported by referential_integrity.
			continue
		}
		if parent.Mode != domain.ModeOnlyGroup {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "shared_group_mode",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("group %q has nested child groups but mode %s", parent.Name, parent.Mode),
				Entity:   domain.EntityGroup,
				EntityID: parent.ID,
			})
		}
	}
	return res, nil
}
