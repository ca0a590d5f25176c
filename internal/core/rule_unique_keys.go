package core

import (
	"context"
	"fmt"

	"rostercore/pkg/domain"
)

// UniqueUsernameRule enforces username uniqueness across the users bag.
func UniqueUsernameRule() domain.Rule {
	return uniqueUsernameRule{}
}

type uniqueUsernameRule struct{}

func (uniqueUsernameRule) Name() string { return "unique_username" }

func (uniqueUsernameRule) Evaluate(_ context.Context, view domain.TransactionView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	seen := make(map[string]string)
	for _, u := range view.ListUsers() {
		if prev, dup := seen[u.Username]; dup {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "unique_username",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("username %q held by users %s and %s", u.Username, prev, u.ID),
				Entity:   domain.EntityUser,
				EntityID: u.ID,
			})
			continue
		}
		seen[u.Username] = u.ID
	}
	return res, nil
}

// UniqueRosterKeysRule enforces backend-ID uniqueness and (owner, resolved
// target) uniqueness across roster items. Target resolution is delegated to
// the host-supplied extern.
func UniqueRosterKeysRule(externs domain.Externs) domain.Rule {
	return uniqueRosterKeysRule{externs: externs.Normalized()}
}

type uniqueRosterKeysRule struct {
	externs domain.Externs
}

func (uniqueRosterKeysRule) Name() string { return "unique_roster_keys" }

func (r uniqueRosterKeysRule) Evaluate(_ context.Context, view domain.TransactionView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	backendIDs := make(map[string]string)
	ownerTargets := make(map[[2]string]string)
	for _, it := range view.ListRosterItems() {
		if prev, dup := backendIDs[it.BackendID]; dup {
			res.Violations = append(res.Violations, rosterKeyViolation(it.ID,
				fmt.Sprintf("backend id %q held by items %s and %s", it.BackendID, prev, it.ID)))
		} else {
			backendIDs[it.BackendID] = it.ID
		}
		key := [2]string{it.Owner, r.externs.ResolveTarget(it.Target)}
		if prev, dup := ownerTargets[key]; dup {
			res.Violations = append(res.Violations, rosterKeyViolation(it.ID,
				fmt.Sprintf("owner %q target %q held by items %s and %s", key[0], key[1], prev, it.ID)))
		} else {
			ownerTargets[key] = it.ID
		}
	}
	return res, nil
}

func rosterKeyViolation(entityID, message string) domain.Violation {
	return domain.Violation{
		Rule:     "unique_roster_keys",
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   domain.EntityRosterItem,
		EntityID: entityID,
	}
}

// UniqueGroupNameRule enforces group-name uniqueness across the groups bag.
func UniqueGroupNameRule() domain.Rule {
	return uniqueGroupNameRule{}
}

type uniqueGroupNameRule struct{}

func (uniqueGroupNameRule) Name() string { return "unique_group_name" }

func (uniqueGroupNameRule) Evaluate(_ context.Context, view domain.TransactionView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	seen := make(map[string]string)
	for _, g := range view.ListGroups() {
		if prev, dup := seen[g.Name]; dup {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "unique_group_name",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("group name %q held by groups %s and %s", g.Name, prev, g.ID),
				Entity:   domain.EntityGroup,
				EntityID: g.ID,
			})
			continue
		}
		seen[g.Name] = g.ID
	}
	return res, nil
}
