package memory

import "rostercore/pkg/domain"

func precondition(op string, entity domain.EntityType, key, conflict string) error {
	return domain.PreconditionError{Op: op, Entity: entity, Key: key, Conflict: conflict}
}

// AddUser creates a user handle and inserts it into the users bag. The
// username must not be held by any live user.
func (tx *transaction) AddUser(u User) (User, error) {
	if u.Username == "" {
		return User{}, precondition("AddUser", domain.EntityUser, u.Username, "username must not be empty")
	}
	for _, existing := range tx.state.users {
		if existing.Username == u.Username {
			return User{}, precondition("AddUser", domain.EntityUser, u.Username, "username already in use")
		}
	}
	if u.ID == "" {
		u.ID = tx.store.newID()
	}
	if _, exists := tx.state.users[u.ID]; exists {
		return User{}, precondition("AddUser", domain.EntityUser, u.ID, "handle already live")
	}
	u.CreatedAt = tx.now
	u.UpdatedAt = tx.now
	tx.state.users[u.ID] = u
	tx.recordChange(Change{Entity: domain.EntityUser, Action: domain.ActionCreate, After: u})
	return u, nil
}

// UpdateUser mutates a user payload in place; the handle ID never changes.
func (tx *transaction) UpdateUser(id string, mutator func(*User) error) (User, error) {
	current, ok := tx.state.users[id]
	if !ok {
		return User{}, precondition("UpdateUser", domain.EntityUser, id, "handle not live")
	}
	before := current
	if err := mutator(&current); err != nil {
		return User{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.users[id] = current
	tx.recordChange(Change{Entity: domain.EntityUser, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// RemoveUser disposes a user handle. The user must not appear in any
// membership or administrator pair; clearing those is the caller's job.
func (tx *transaction) RemoveUser(id string) error {
	current, ok := tx.state.users[id]
	if !ok {
		return precondition("RemoveUser", domain.EntityUser, id, "handle not live")
	}
	for m := range tx.state.groupMembers {
		if m.UserID == id {
			return precondition("RemoveUser", domain.EntityUser, current.Username, "user is still a group member")
		}
	}
	for m := range tx.state.admins {
		if m.UserID == id {
			return precondition("RemoveUser", domain.EntityUser, current.Username, "user is still a group administrator")
		}
	}
	delete(tx.state.users, id)
	tx.recordChange(Change{Entity: domain.EntityUser, Action: domain.ActionDelete, Before: current})
	return nil
}

// AddRosterItem inserts an explicit roster entry. Both the backend ID and the
// (owner, resolved target) pair must be free.
func (tx *transaction) AddRosterItem(it RosterItem) (RosterItem, error) {
	if it.BackendID == "" {
		return RosterItem{}, precondition("AddRosterItem", domain.EntityRosterItem, it.BackendID, "backend id must not be empty")
	}
	resolve := tx.store.externs.ResolveTarget
	key := resolve(it.Target)
	for _, existing := range tx.state.rosterItems {
		if existing.BackendID == it.BackendID {
			return RosterItem{}, precondition("AddRosterItem", domain.EntityRosterItem, it.BackendID, "backend id already in use")
		}
		if existing.Owner == it.Owner && resolve(existing.Target) == key {
			return RosterItem{}, precondition("AddRosterItem", domain.EntityRosterItem, it.Owner+"/"+key, "owner already has an item for this target")
		}
	}
	if it.ID == "" {
		it.ID = tx.store.newID()
	}
	if _, exists := tx.state.rosterItems[it.ID]; exists {
		return RosterItem{}, precondition("AddRosterItem", domain.EntityRosterItem, it.ID, "handle already live")
	}
	if it.Ask == "" {
		it.Ask = tx.store.externs.DefaultAsk()
	}
	if it.Recv == "" {
		it.Recv = tx.store.externs.DefaultRecv()
	}
	it.CreatedAt = tx.now
	it.UpdatedAt = tx.now
	tx.state.rosterItems[it.ID] = it
	tx.recordChange(Change{Entity: domain.EntityRosterItem, Action: domain.ActionCreate, After: it})
	return it, nil
}

// UpdateRosterItem mutates a roster item payload in place.
func (tx *transaction) UpdateRosterItem(id string, mutator func(*RosterItem) error) (RosterItem, error) {
	current, ok := tx.state.rosterItems[id]
	if !ok {
		return RosterItem{}, precondition("UpdateRosterItem", domain.EntityRosterItem, id, "handle not live")
	}
	before := current
	if err := mutator(&current); err != nil {
		return RosterItem{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.rosterItems[id] = current
	tx.recordChange(Change{Entity: domain.EntityRosterItem, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// RemoveRosterItem disposes a roster item handle.
func (tx *transaction) RemoveRosterItem(id string) error {
	current, ok := tx.state.rosterItems[id]
	if !ok {
		return precondition("RemoveRosterItem", domain.EntityRosterItem, id, "handle not live")
	}
	delete(tx.state.rosterItems, id)
	tx.recordChange(Change{Entity: domain.EntityRosterItem, Action: domain.ActionDelete, Before: current})
	return nil
}

// AddGroup creates a group handle. The group name must be free.
func (tx *transaction) AddGroup(g Group) (Group, error) {
	if g.Name == "" {
		return Group{}, precondition("AddGroup", domain.EntityGroup, g.Name, "group name must not be empty")
	}
	for _, existing := range tx.state.groups {
		if existing.Name == g.Name {
			return Group{}, precondition("AddGroup", domain.EntityGroup, g.Name, "group name already in use")
		}
	}
	if g.Mode == "" {
		g.Mode = domain.ModeNobody
	}
	if !g.Mode.Valid() {
		return Group{}, precondition("AddGroup", domain.EntityGroup, g.Name, "unknown visibility mode")
	}
	if g.ID == "" {
		g.ID = tx.store.newID()
	}
	if _, exists := tx.state.groups[g.ID]; exists {
		return Group{}, precondition("AddGroup", domain.EntityGroup, g.ID, "handle already live")
	}
	g.CreatedAt = tx.now
	g.UpdatedAt = tx.now
	tx.state.groups[g.ID] = g
	tx.recordChange(Change{Entity: domain.EntityGroup, Action: domain.ActionCreate, After: g})
	return g, nil
}

// UpdateGroup mutates a group payload in place. Mode changes that strand
// child pairs are caught by the shared-group invariant at commit; callers
// wanting the guard up front use SetGroupMode.
func (tx *transaction) UpdateGroup(id string, mutator func(*Group) error) (Group, error) {
	current, ok := tx.state.groups[id]
	if !ok {
		return Group{}, precondition("UpdateGroup", domain.EntityGroup, id, "handle not live")
	}
	before := current
	if err := mutator(&current); err != nil {
		return Group{}, err
	}
	if !current.Mode.Valid() {
		return Group{}, precondition("UpdateGroup", domain.EntityGroup, before.Name, "unknown visibility mode")
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.groups[id] = current
	tx.recordChange(Change{Entity: domain.EntityGroup, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// SetGroupMode changes a group's visibility mode. While the group still has
// attached child pairs the mode must remain ModeOnlyGroup.
func (tx *transaction) SetGroupMode(id string, mode domain.RosterMode) (Group, error) {
	current, ok := tx.state.groups[id]
	if !ok {
		return Group{}, precondition("SetGroupMode", domain.EntityGroup, id, "handle not live")
	}
	if !mode.Valid() {
		return Group{}, precondition("SetGroupMode", domain.EntityGroup, current.Name, "unknown visibility mode")
	}
	if mode != domain.ModeOnlyGroup {
		for p := range tx.state.childGroups {
			if p.ParentID == id {
				return Group{}, precondition("SetGroupMode", domain.EntityGroup, current.Name, "group still has nested child groups")
			}
		}
	}
	return tx.UpdateGroup(id, func(g *Group) error {
		g.Mode = mode
		return nil
	})
}

// RemoveGroup disposes a group handle. The group must not appear in any
// child-group, membership, or administrator pair on either side.
func (tx *transaction) RemoveGroup(id string) error {
	current, ok := tx.state.groups[id]
	if !ok {
		return precondition("RemoveGroup", domain.EntityGroup, id, "handle not live")
	}
	for p := range tx.state.childGroups {
		if p.ParentID == id || p.ChildID == id {
			return precondition("RemoveGroup", domain.EntityGroup, current.Name, "group still linked in child-group pairs")
		}
	}
	for m := range tx.state.groupMembers {
		if m.GroupID == id {
			return precondition("RemoveGroup", domain.EntityGroup, current.Name, "group still has members")
		}
	}
	for m := range tx.state.admins {
		if m.GroupID == id {
			return precondition("RemoveGroup", domain.EntityGroup, current.Name, "group still has administrators")
		}
	}
	delete(tx.state.groups, id)
	tx.recordChange(Change{Entity: domain.EntityGroup, Action: domain.ActionDelete, Before: current})
	return nil
}

// AddMember inserts a membership pair. Both handles must be live and the pair
// absent; re-adding an existing pair is rejected, not absorbed.
func (tx *transaction) AddMember(groupID, userID string) error {
	return tx.addPair("AddMember", domain.EntityGroupMember, tx.state.groupMembers, groupID, userID)
}

// RemoveMember deletes a membership pair. Removing an absent pair is a no-op.
func (tx *transaction) RemoveMember(groupID, userID string) error {
	return tx.removePair(domain.EntityGroupMember, tx.state.groupMembers, groupID, userID)
}

// AddAdmin inserts an administrator pair under the same rules as AddMember.
func (tx *transaction) AddAdmin(groupID, userID string) error {
	return tx.addPair("AddAdmin", domain.EntityAdmin, tx.state.admins, groupID, userID)
}

// RemoveAdmin deletes an administrator pair. Removing an absent pair is a no-op.
func (tx *transaction) RemoveAdmin(groupID, userID string) error {
	return tx.removePair(domain.EntityAdmin, tx.state.admins, groupID, userID)
}

func (tx *transaction) addPair(op string, entity domain.EntityType, set map[Membership]struct{}, groupID, userID string) error {
	group, ok := tx.state.groups[groupID]
	if !ok {
		return precondition(op, domain.EntityGroup, groupID, "handle not live")
	}
	user, ok := tx.state.users[userID]
	if !ok {
		return precondition(op, domain.EntityUser, userID, "handle not live")
	}
	pair := Membership{GroupID: groupID, UserID: userID}
	if _, exists := set[pair]; exists {
		return precondition(op, entity, group.Name+"/"+user.Username, "pair already present")
	}
	set[pair] = struct{}{}
	tx.recordChange(Change{Entity: entity, Action: domain.ActionCreate, After: pair})
	return nil
}

func (tx *transaction) removePair(entity domain.EntityType, set map[Membership]struct{}, groupID, userID string) error {
	pair := Membership{GroupID: groupID, UserID: userID}
	if _, exists := set[pair]; !exists {
		return nil
	}
	delete(set, pair)
	tx.recordChange(Change{Entity: entity, Action: domain.ActionDelete, Before: pair})
	return nil
}

// AddChildGroup nests child directly under parent. The parent must be in
// ModeOnlyGroup, both groups live, and the pair absent.
func (tx *transaction) AddChildGroup(parentID, childID string) error {
	parent, ok := tx.state.groups[parentID]
	if !ok {
		return precondition("AddChildGroup", domain.EntityGroup, parentID, "handle not live")
	}
	if parent.Mode != domain.ModeOnlyGroup {
		return precondition("AddChildGroup", domain.EntityGroup, parent.Name, "parent group is not in ONLY_GROUP mode")
	}
	child, ok := tx.state.groups[childID]
	if !ok {
		return precondition("AddChildGroup", domain.EntityGroup, childID, "handle not live")
	}
	pair := GroupPair{ParentID: parentID, ChildID: childID}
	if _, exists := tx.state.childGroups[pair]; exists {
		return precondition("AddChildGroup", domain.EntityChildGroup, parent.Name+"/"+child.Name, "pair already present")
	}
	tx.state.childGroups[pair] = struct{}{}
	tx.recordChange(Change{Entity: domain.EntityChildGroup, Action: domain.ActionCreate, After: pair})
	return nil
}

// RemoveChildGroup detaches child from parent. Removing an absent pair is a no-op.
func (tx *transaction) RemoveChildGroup(parentID, childID string) error {
	pair := GroupPair{ParentID: parentID, ChildID: childID}
	if _, exists := tx.state.childGroups[pair]; !exists {
		return nil
	}
	delete(tx.state.childGroups, pair)
	tx.recordChange(Change{Entity: domain.EntityChildGroup, Action: domain.ActionDelete, Before: pair})
	return nil
}
