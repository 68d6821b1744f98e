package domain

import (
	"maps"
	"time"
)

// Trail records who moved an entity last and when each state was entered.
type Trail struct {
	ActorID   string
	ActorRole Role
	EnteredAt map[State]time.Time
}

// advanced returns a copy of t with s entered by actor at at.
func (t Trail) advanced(s State, actor Actor, at time.Time) Trail {
	entered := maps.Clone(t.EnteredAt)
	if entered == nil {
		entered = make(map[State]time.Time)
	}
	entered[s] = at
	return Trail{ActorID: actor.ID, ActorRole: actor.Role, EnteredAt: entered}
}

// Entered returns when s was entered, if it was.
func (t Trail) Entered(s State) (time.Time, bool) {
	at, ok := t.EnteredAt[s]
	return at, ok
}

// NewTrail starts a trail at the initial state.
func NewTrail(initial State, actor Actor, at time.Time) Trail {
	return Trail{}.advanced(initial, actor, at)
}
