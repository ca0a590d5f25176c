package core

import (
	"context"
	"time"

	"rostercore/internal/infra/persistence/memory"
)

// Service exposes the mutation and derived-query entry points of the roster
// engine to a host program. Every mutation is a single transaction; every
// query runs against one consistent snapshot.
type Service struct {
	store   PersistentStore
	externs Externs
	metrics MetricsRecorder
	tracer  Tracer
	logger  Logger
}

// ServiceOption customises a Service at construction time.
type ServiceOption func(*Service)

// WithMetricsRecorder attaches a metrics recorder to every entry point.
func WithMetricsRecorder(rec MetricsRecorder) ServiceOption {
	return func(s *Service) { s.metrics = rec }
}

// WithTracer attaches a tracer to every entry point.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) { s.tracer = tracer }
}

// WithLogger replaces the no-op logger.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, externs Externs, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		externs: externs.Normalized(),
		logger:  NopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store gated by
// the default invariant set.
func NewInMemoryService(externs Externs, opts ...ServiceOption) *Service {
	externs = externs.Normalized()
	store := memory.NewStore(NewDefaultRulesEngine(externs), externs)
	return NewService(store, externs, opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// observe wraps one entry point with tracing, metrics, and error logging.
func (s *Service) observe(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, op)
	}
	return ctx, func(err error) {
		if span != nil {
			span.End(err)
		}
		if s.metrics != nil {
			s.metrics.Observe(ctx, op, err == nil, time.Since(start))
		}
		if err != nil {
			s.logger.Printf("%s: %v", op, err)
		}
	}
}

// Mutations -----------------------------------------------------------------

// AddUser creates a user record.
func (s *Service) AddUser(ctx context.Context, user User) (User, Result, error) {
	ctx, done := s.observe(ctx, "add_user")
	var created User
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.AddUser(user)
		return err
	})
	done(err)
	return created, res, err
}

// RemoveUser disposes a user record once no relation references it.
func (s *Service) RemoveUser(ctx context.Context, id string) (Result, error) {
	ctx, done := s.observe(ctx, "remove_user")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.RemoveUser(id)
	})
	done(err)
	return res, err
}

// AddRosterItem creates an explicit roster entry.
func (s *Service) AddRosterItem(ctx context.Context, item RosterItem) (RosterItem, Result, error) {
	ctx, done := s.observe(ctx, "add_roster_item")
	var created RosterItem
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.AddRosterItem(item)
		return err
	})
	done(err)
	return created, res, err
}

// RemoveRosterItem disposes a roster entry.
func (s *Service) RemoveRosterItem(ctx context.Context, id string) (Result, error) {
	ctx, done := s.observe(ctx, "remove_roster_item")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.RemoveRosterItem(id)
	})
	done(err)
	return res, err
}

// AddGroup creates a group record.
func (s *Service) AddGroup(ctx context.Context, group Group) (Group, Result, error) {
	ctx, done := s.observe(ctx, "add_group")
	var created Group
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.AddGroup(group)
		return err
	})
	done(err)
	return created, res, err
}

// RemoveGroup disposes a group record once no relation references it.
func (s *Service) RemoveGroup(ctx context.Context, id string) (Result, error) {
	ctx, done := s.observe(ctx, "remove_group")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.RemoveGroup(id)
	})
	done(err)
	return res, err
}

// SetGroupMode changes a group's visibility mode under the nested-children guard.
func (s *Service) SetGroupMode(ctx context.Context, id string, mode RosterMode) (Group, Result, error) {
	ctx, done := s.observe(ctx, "set_group_mode")
	var updated Group
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.SetGroupMode(id, mode)
		return err
	})
	done(err)
	return updated, res, err
}

// AddMember inserts a membership pair.
func (s *Service) AddMember(ctx context.Context, groupID, userID string) (Result, error) {
	ctx, done := s.observe(ctx, "add_member")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.AddMember(groupID, userID)
	})
	done(err)
	return res, err
}

// RemoveMember deletes a membership pair; absent pairs are a no-op.
func (s *Service) RemoveMember(ctx context.Context, groupID, userID string) (Result, error) {
	ctx, done := s.observe(ctx, "remove_member")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.RemoveMember(groupID, userID)
	})
	done(err)
	return res, err
}

// AddAdmin inserts an administrator pair.
func (s *Service) AddAdmin(ctx context.Context, groupID, userID string) (Result, error) {
	ctx, done := s.observe(ctx, "add_admin")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.AddAdmin(groupID, userID)
	})
	done(err)
	return res, err
}

// RemoveAdmin deletes an administrator pair; absent pairs are a no-op.
func (s *Service) RemoveAdmin(ctx context.Context, groupID, userID string) (Result, error) {
	ctx, done := s.observe(ctx, "remove_admin")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.RemoveAdmin(groupID, userID)
	})
	done(err)
	return res, err
}

// AddChildGroup nests one group under an ONLY_GROUP parent.
func (s *Service) AddChildGroup(ctx context.Context, parentID, childID string) (Result, error) {
	ctx, done := s.observe(ctx, "add_child_group")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.AddChildGroup(parentID, childID)
	})
	done(err)
	return res, err
}

// RemoveChildGroup detaches a nested group; absent pairs are a no-op.
func (s *Service) RemoveChildGroup(ctx context.Context, parentID, childID string) (Result, error) {
	ctx, done := s.observe(ctx, "remove_child_group")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.RemoveChildGroup(parentID, childID)
	})
	done(err)
	return res, err
}

// SetAskStatus mutates a roster item's outgoing request state in place.
func (s *Service) SetAskStatus(ctx context.Context, itemID string, ask AskStatus) (RosterItem, Result, error) {
	return s.updateRosterItem(ctx, "set_ask_status", itemID, func(it *RosterItem) error {
		it.Ask = ask
		return nil
	})
}

// SetRecvStatus mutates a roster item's incoming request state in place.
func (s *Service) SetRecvStatus(ctx context.Context, itemID string, recv RecvStatus) (RosterItem, Result, error) {
	return s.updateRosterItem(ctx, "set_recv_status", itemID, func(it *RosterItem) error {
		it.Recv = recv
		return nil
	})
}

// SetNickname mutates a roster item's nickname in place.
func (s *Service) SetNickname(ctx context.Context, itemID, nickname string) (RosterItem, Result, error) {
	return s.updateRosterItem(ctx, "set_nickname", itemID, func(it *RosterItem) error {
		it.Nickname = nickname
		return nil
	})
}

func (s *Service) updateRosterItem(ctx context.Context, op, itemID string, mutator func(*RosterItem) error) (RosterItem, Result, error) {
	ctx, done := s.observe(ctx, op)
	var updated RosterItem
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateRosterItem(itemID, mutator)
		return err
	})
	done(err)
	return updated, res, err
}

// SetUserDisplayName mutates a user's display name in place.
func (s *Service) SetUserDisplayName(ctx context.Context, userID, displayName string) (User, Result, error) {
	ctx, done := s.observe(ctx, "set_user_display_name")
	var updated User
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateUser(userID, func(u *User) error {
			u.DisplayName = displayName
			return nil
		})
		return err
	})
	done(err)
	return updated, res, err
}

// SetGroupDisplayName mutates a group's display name in place.
func (s *Service) SetGroupDisplayName(ctx context.Context, groupID, displayName string) (Group, Result, error) {
	return s.updateGroup(ctx, "set_group_display_name", groupID, func(g *Group) error {
		g.DisplayName = displayName
		return nil
	})
}

// SetGroupDescription mutates a group's description in place.
func (s *Service) SetGroupDescription(ctx context.Context, groupID, description string) (Group, Result, error) {
	return s.updateGroup(ctx, "set_group_description", groupID, func(g *Group) error {
		g.Description = description
		return nil
	})
}

func (s *Service) updateGroup(ctx context.Context, op, groupID string, mutator func(*Group) error) (Group, Result, error) {
	ctx, done := s.observe(ctx, op)
	var updated Group
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateGroup(groupID, mutator)
		return err
	})
	done(err)
	return updated, res, err
}

// Derived queries -----------------------------------------------------------

// query evaluates fn against a fresh evaluator over the committed snapshot.
func (s *Service) query(ctx context.Context, op string, fn func(q *Queries) error) error {
	ctx, done := s.observe(ctx, op)
	err := s.store.View(ctx, func(view TransactionView) error {
		return fn(NewQueries(view, s.externs))
	})
	done(err)
	return err
}

// FindUserByUsername selects the unique user holding the username.
func (s *Service) FindUserByUsername(ctx context.Context, username string) (User, error) {
	var found User
	err := s.query(ctx, "find_user", func(q *Queries) error {
		var err error
		found, err = q.FindUserByUsername(username)
		return err
	})
	return found, err
}

// FindGroupByName selects the unique group holding the name.
func (s *Service) FindGroupByName(ctx context.Context, name string) (Group, error) {
	var found Group
	err := s.query(ctx, "find_group", func(q *Queries) error {
		var err error
		found, err = q.FindGroupByName(name)
		return err
	})
	return found, err
}

// InGroup reports direct group membership.
func (s *Service) InGroup(ctx context.Context, groupID, userID string) (bool, error) {
	var in bool
	err := s.query(ctx, "in_group", func(q *Queries) error {
		in = q.InGroup(groupID, userID)
		return nil
	})
	return in, err
}

// GroupIsVisible reports one-hop group visibility for a user.
func (s *Service) GroupIsVisible(ctx context.Context, groupID, userID string) (bool, error) {
	var visible bool
	err := s.query(ctx, "group_is_visible", func(q *Queries) error {
		visible = q.GroupIsVisible(groupID, userID)
		return nil
	})
	return visible, err
}

// HasSubscriptionTo reports the asymmetric derived subscription predicate.
func (s *Service) HasSubscriptionTo(ctx context.Context, userID, peerID string) (bool, error) {
	var has bool
	err := s.query(ctx, "has_subscription_to", func(q *Queries) error {
		has = q.HasSubscriptionTo(userID, peerID)
		return nil
	})
	return has, err
}

// SharedGroups collects the groups through which peerID is visible to userID.
func (s *Service) SharedGroups(ctx context.Context, userID, peerID string) ([]Group, error) {
	var groups []Group
	err := s.query(ctx, "shared_groups", func(q *Queries) error {
		groups = q.SharedGroups(userID, peerID)
		return nil
	})
	return groups, err
}

// UsersWatchingGroup collects every user the group is visible to.
func (s *Service) UsersWatchingGroup(ctx context.Context, groupID string) ([]User, error) {
	var users []User
	err := s.query(ctx, "users_watching_group", func(q *Queries) error {
		users = q.UsersWatchingGroup(groupID)
		return nil
	})
	return users, err
}

// RosterEntry assembles the composite roster view of one peer.
func (s *Service) RosterEntry(ctx context.Context, userID, peerID string) (RosterViewEntry, error) {
	var entry RosterViewEntry
	err := s.query(ctx, "roster_entry", func(q *Queries) error {
		var err error
		entry, err = q.RosterEntry(userID, peerID)
		return err
	})
	return entry, err
}

// Roster assembles the full roster view of a user.
func (s *Service) Roster(ctx context.Context, userID string) ([]RosterViewEntry, error) {
	var entries []RosterViewEntry
	err := s.query(ctx, "roster", func(q *Queries) error {
		var err error
		entries, err = q.Roster(userID)
		return err
	})
	return entries, err
}
