package domain

import "slices"

// State is a node of a workflow graph.
type State string

// Action names an edge of a workflow graph.
type Action string

// Edge is one authorized transition.
type Edge struct {
	Action Action
	From   []State
	To     State
	Roles  []Role
}

// Machine is a process state graph with role-guarded edges.
type Machine struct {
	Name     string
	Initial  State
	Terminal []State
	edges    map[Action]Edge
}

// NewMachine builds a machine from its edges. Duplicate action names panic.
func NewMachine(name string, initial State, terminal []State, edges ...Edge) *Machine {
	m := &Machine{
		Name:     name,
		Initial:  initial,
		Terminal: terminal,
		edges:    make(map[Action]Edge, len(edges)),
	}
	for _, e := range edges {
		if _, dup := m.edges[e.Action]; dup {
			panic("workflow " + name + ": duplicate action " + string(e.Action))
		}
		m.edges[e.Action] = e
	}
	return m
}

// IsTerminal reports whether no transition can leave s.
func (m *Machine) IsTerminal(s State) bool {
	return slices.Contains(m.Terminal, s)
}

// Transition checks state membership and actor role for action and returns the target state.
// Data preconditions are checked by the caller.
func (m *Machine) Transition(current State, action Action, actor Actor) (State, error) {
	edge, ok := m.edges[action]
	if !ok {
		return current, InvalidTransition("%s: unknown action %q", m.Name, action)
	}
	if m.IsTerminal(current) {
		return current, InvalidTransition("%s: %s is terminal", m.Name, current)
	}
	if !slices.Contains(edge.From, current) {
		return current, InvalidTransition("%s: cannot %s from %s", m.Name, action, current)
	}
	if !slices.Contains(edge.Roles, actor.Role) {
		return current, InvalidTransition("%s: role %q may not %s", m.Name, actor.Role, action)
	}
	return edge.To, nil
}

// Can reports whether Transition would succeed.
func (m *Machine) Can(current State, action Action, actor Actor) bool {
	_, err := m.Transition(current, action, actor)
	return err == nil
}

// Edges returns the machine's edges, for documentation and tests.
func (m *Machine) Edges() []Edge {
	out := make([]Edge, 0, len(m.edges))
	for _, e := range m.edges {
		out = append(out, e)
	}
	return out
}
