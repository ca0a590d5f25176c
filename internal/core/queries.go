package core

import (
	"sort"

	"rostercore/pkg/domain"
)

// RosterViewEntry is the composite read model for one peer in a user's
// roster: the folded two-directional subscription state plus the explicit
// item, when one exists.
type RosterViewEntry struct {
	Username     string
	Nickname     string
	Subscription SubscriptionState
	Ask          AskStatus
	Recv         RecvStatus
	Item         *RosterItem
}

// Queries evaluates the derived read model against one immutable snapshot.
// The call graph is acyclic by the data model's own rules:
// Roster -> RosterEntry -> HasSubscriptionTo -> SharedGroups ->
// GroupIsVisible -> InGroup. The index is built once per evaluator, which is
// legal because the snapshot cannot change mid-evaluation.
type Queries struct {
	view    domain.TransactionView
	externs domain.Externs

	users            []User
	groups           []Group
	usersByID        map[string]User
	groupsByID       map[string]Group
	members          map[Membership]struct{}
	childrenByParent map[string][]string
	itemsByOwnerKey  map[[2]string]RosterItem
}

// NewQueries builds a query evaluator over the given snapshot.
func NewQueries(view domain.TransactionView, externs domain.Externs) *Queries {
	externs = externs.Normalized()
	q := &Queries{
		view:             view,
		externs:          externs,
		users:            view.ListUsers(),
		groups:           view.ListGroups(),
		usersByID:        make(map[string]User),
		groupsByID:       make(map[string]Group),
		members:          make(map[Membership]struct{}),
		childrenByParent: make(map[string][]string),
		itemsByOwnerKey:  make(map[[2]string]RosterItem),
	}
	for _, u := range q.users {
		q.usersByID[u.ID] = u
	}
	for _, g := range q.groups {
		q.groupsByID[g.ID] = g
	}
	for _, m := range view.ListGroupMembers() {
		q.members[m] = struct{}{}
	}
	for _, p := range view.ListChildGroups() {
		q.childrenByParent[p.ParentID] = append(q.childrenByParent[p.ParentID], p.ChildID)
	}
	for _, it := range view.ListRosterItems() {
		q.itemsByOwnerKey[[2]string{it.Owner, externs.ResolveTarget(it.Target)}] = it
	}
	return q
}

// FindUserByUsername selects the unique user holding the username. Zero or
// multiple matches is an IntegrityError: the uniqueness invariant makes both
// impossible in a consistent store.
func (q *Queries) FindUserByUsername(username string) (User, error) {
	var found User
	count := 0
	for _, u := range q.users {
		if u.Username == username {
			found = u
			count++
		}
	}
	if count != 1 {
		return User{}, domain.IntegrityError{Entity: domain.EntityUser, Key: username, Count: count}
	}
	return found, nil
}

// FindGroupByName selects the unique group holding the name, under the same
// cardinality contract as FindUserByUsername.
func (q *Queries) FindGroupByName(name string) (Group, error) {
	var found Group
	count := 0
	for _, g := range q.groups {
		if g.Name == name {
			found = g
			count++
		}
	}
	if count != 1 {
		return Group{}, domain.IntegrityError{Entity: domain.EntityGroup, Key: name, Count: count}
	}
	return found, nil
}

// InGroup reports whether the user is a direct member of the group.
func (q *Queries) InGroup(groupID, userID string) bool {
	_, ok := q.members[Membership{GroupID: groupID, UserID: userID}]
	return ok
}

// GroupIsVisible reports whether the group's membership is exposed to the
// user: everybody-visible, direct member of an ONLY_GROUP group, or direct
// member of a child group one hop down. Visibility never propagates through
// a second nesting level.
func (q *Queries) GroupIsVisible(groupID, userID string) bool {
	g, ok := q.groupsByID[groupID]
	if !ok {
		return false
	}
	switch g.Mode {
	case domain.ModeEverybody:
		return true
	case domain.ModeOnlyGroup:
		if q.InGroup(groupID, userID) {
			return true
		}
		for _, childID := range q.childrenByParent[groupID] {
			if q.InGroup(childID, userID) {
				return true
			}
		}
	}
	return false
}

// SharedGroups collects the groups visible to the first user of which the
// second user is a direct member.
func (q *Queries) SharedGroups(userID, peerID string) []Group {
	var out []Group
	for _, g := range q.groups {
		if q.InGroup(g.ID, peerID) && q.GroupIsVisible(g.ID, userID) {
			out = append(out, g)
		}
	}
	return out
}

// HasSharedGroups reports whether SharedGroups would be non-empty.
func (q *Queries) HasSharedGroups(userID, peerID string) bool {
	for _, g := range q.groups {
		if q.InGroup(g.ID, peerID) && q.GroupIsVisible(g.ID, userID) {
			return true
		}
	}
	return false
}

// HasSubscriptionTo reports whether the first user's contact view includes
// the second, via an explicit roster item or shared group visibility. The
// predicate is intentionally asymmetric.
func (q *Queries) HasSubscriptionTo(userID, peerID string) bool {
	if userID == peerID {
		return false
	}
	user, ok := q.usersByID[userID]
	if !ok {
		return false
	}
	peer, ok := q.usersByID[peerID]
	if !ok {
		return false
	}
	if _, ok := q.itemsByOwnerKey[[2]string{user.Username, peer.Username}]; ok {
		return true
	}
	return q.HasSharedGroups(userID, peerID)
}

// UsersWatchingGroup collects every user the group is visible to.
func (q *Queries) UsersWatchingGroup(groupID string) []User {
	var out []User
	for _, u := range q.users {
		if q.GroupIsVisible(groupID, u.ID) {
			out = append(out, u)
		}
	}
	return out
}

// RosterEntry assembles the composite view of peer as seen from the user's
// roster, folding both subscription directions.
func (q *Queries) RosterEntry(userID, peerID string) (RosterViewEntry, error) {
	user, ok := q.usersByID[userID]
	if !ok {
		return RosterViewEntry{}, domain.IntegrityError{Entity: domain.EntityUser, Key: userID, Count: 0}
	}
	peer, ok := q.usersByID[peerID]
	if !ok {
		return RosterViewEntry{}, domain.IntegrityError{Entity: domain.EntityUser, Key: peerID, Count: 0}
	}

	to := q.HasSubscriptionTo(userID, peerID)
	from := q.HasSubscriptionTo(peerID, userID)

	entry := RosterViewEntry{
		Username:     peer.Username,
		Subscription: foldSubscription(to, from),
		Ask:          q.externs.DefaultAsk(),
		Recv:         q.externs.DefaultRecv(),
	}
	if it, ok := q.itemsByOwnerKey[[2]string{user.Username, peer.Username}]; ok {
		item := it
		entry.Item = &item
		entry.Nickname = item.Nickname
		entry.Ask = item.Ask
		entry.Recv = item.Recv
	}
	return entry, nil
}

// Roster collects the composite entries for every other user with a
// subscription in either direction. Results are sorted by username; ordering
// is presentation only, not a correctness property.
func (q *Queries) Roster(userID string) ([]RosterViewEntry, error) {
	if _, ok := q.usersByID[userID]; !ok {
		return nil, domain.IntegrityError{Entity: domain.EntityUser, Key: userID, Count: 0}
	}
	var out []RosterViewEntry
	for _, peer := range q.users {
		if peer.ID == userID {
			continue
		}
		if !q.HasSubscriptionTo(userID, peer.ID) && !q.HasSubscriptionTo(peer.ID, userID) {
			continue
		}
		entry, err := q.RosterEntry(userID, peer.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func foldSubscription(to, from bool) SubscriptionState {
	switch {
	case to && from:
		return domain.SubscriptionBoth
	case to:
		return domain.SubscriptionTo
	case from:
		return domain.SubscriptionFrom
	}
	return domain.SubscriptionNone
}
