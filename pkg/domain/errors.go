package domain

import "fmt"

// PreconditionError reports an operation whose guard failed against the
// pre-state. The committed store is unchanged when it is returned.
type PreconditionError struct {
	Op       string
	Entity   EntityType
	Key      string
	Conflict string
}

func (e PreconditionError) Error() string {
	if e.Conflict != "" {
		return fmt.Sprintf("%s: precondition failed for %s %q: %s", e.Op, e.Entity, e.Key, e.Conflict)
	}
	return fmt.Sprintf("%s: precondition failed for %s %q", e.Op, e.Entity, e.Key)
}

// IntegrityError reports an exactly-one lookup that matched zero or more than
// one record. It signals that a uniqueness invariant was bypassed upstream.
type IntegrityError struct {
	Entity EntityType
	Key    string
	Count  int
}

func (e IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation: expected exactly one %s with key %q, found %d", e.Entity, e.Key, e.Count)
}
