package domain

import "strings"

// Externs bundles the host-supplied pure functions consumed by the engine.
// Every function must be total, deterministic, and free of side effects; the
// atomicity guarantee of the store assumes they neither block nor fail.
type Externs struct {
	// ResolveTarget reduces a structured contact identifier to the bare key
	// used for roster uniqueness and subscription matching.
	ResolveTarget func(target string) string
	// DefaultAsk returns the "no pending outgoing request" sentinel.
	DefaultAsk func() AskStatus
	// DefaultRecv returns the "no pending incoming request" sentinel.
	DefaultRecv func() RecvStatus
}

// DefaultExterns resolves targets by stripping an XMPP-style /resource suffix
// and uses the none sentinels for subscription request states.
func DefaultExterns() Externs {
	return Externs{
		ResolveTarget: BareTarget,
		DefaultAsk:    func() AskStatus { return AskNone },
		DefaultRecv:   func() RecvStatus { return RecvNone },
	}
}

// BareTarget strips everything after the first '/' of a structured contact
// identifier, yielding the bare key.
func BareTarget(target string) string {
	if i := strings.IndexByte(target, '/'); i >= 0 {
		return target[:i]
	}
	return target
}

// Normalized returns a copy of e with any nil function replaced by its
// default implementation, so callers may populate only what they override.
func (e Externs) Normalized() Externs {
	def := DefaultExterns()
	if e.ResolveTarget == nil {
		e.ResolveTarget = def.ResolveTarget
	}
	if e.DefaultAsk == nil {
		e.DefaultAsk = def.DefaultAsk
	}
	if e.DefaultRecv == nil {
		e.DefaultRecv = def.DefaultRecv
	}
	return e
}
