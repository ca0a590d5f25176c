package core

import "rostercore/pkg/domain"

type (
	EntityType        = domain.EntityType
	RosterMode        = domain.RosterMode
	AskStatus         = domain.AskStatus
	RecvStatus        = domain.RecvStatus
	SubscriptionState = domain.SubscriptionState
	User              = domain.User
	RosterItem        = domain.RosterItem
	Group             = domain.Group
	GroupPair         = domain.GroupPair
	Membership        = domain.Membership
	Change            = domain.Change
	Action            = domain.Action
	Violation         = domain.Violation
	Result            = domain.Result
	Snapshot          = domain.Snapshot
	Externs           = domain.Externs
	RulesEngine       = domain.RulesEngine
	Rule              = domain.Rule
	Transaction       = domain.Transaction
	TransactionView   = domain.TransactionView
	PersistentStore   = domain.PersistentStore
)

const (
	EntityUser        = domain.EntityUser
	EntityRosterItem  = domain.EntityRosterItem
	EntityGroup       = domain.EntityGroup
	EntityChildGroup  = domain.EntityChildGroup
	EntityGroupMember = domain.EntityGroupMember
	EntityAdmin       = domain.EntityAdmin
)

const (
	ModeNobody    = domain.ModeNobody
	ModeOnlyGroup = domain.ModeOnlyGroup
	ModeEverybody = domain.ModeEverybody
)

const (
	SubscriptionNone = domain.SubscriptionNone
	SubscriptionTo   = domain.SubscriptionTo
	SubscriptionFrom = domain.SubscriptionFrom
	SubscriptionBoth = domain.SubscriptionBoth
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
