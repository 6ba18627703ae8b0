// Package statemachine implements the per-item automaton shared by the
// Solution and OE remediation engines. Rather than a class hierarchy per
// variant, both automata are the same generic Machine parameterised over
// their own state type and a static legal-successors table.
package statemachine

import (
	"fmt"
	"time"

	"github.com/relay-bss/batchmender/internal/remerr"
)

// Transition records one state change in an item's history.
type Transition[S comparable] struct {
	From   S
	To     S
	Reason string
	At     time.Time
}

// Snapshot is the read-only view returned by Machine.Snapshot.
type Snapshot[S comparable] struct {
	ItemID    string
	Current   S
	History   []Transition[S]
	StartedAt time.Time
	Error     string
}

// Machine drives a single item through a table of legal successors. It is
// not safe for concurrent use — callers process one item strictly
// sequentially, so no internal locking is needed.
type Machine[S comparable] struct {
	itemID    string
	current   S
	legal     map[S][]S
	terminals map[S]bool
	// failureStates capture their Transition's reason as Error when entered.
	failureStates map[S]bool

	history   []Transition[S]
	startedAt time.Time
	err       string
}

// New builds a Machine starting at initial. legal maps each state to its
// legal successors (absent or empty = terminal); terminals restates which
// states have no legal successors (kept separate from len(legal[s])==0 so a
// state can be explicitly marked terminal without an entry in legal at
// all — matches how models.SolutionTerminals/OETerminals are built).
// failureStates names the state(s) that capture a transition's reason as
// the item's Error when entered.
func New[S comparable](itemID string, initial S, legal map[S][]S, terminals map[S]bool, failureStates ...S) *Machine[S] {
	fs := make(map[S]bool, len(failureStates))
	for _, s := range failureStates {
		fs[s] = true
	}
	return &Machine[S]{
		itemID:        itemID,
		current:       initial,
		legal:         legal,
		terminals:     terminals,
		failureStates: fs,
		startedAt:     time.Now(),
	}
}

// Current returns the current state.
func (m *Machine[S]) Current() S { return m.current }

// IsTerminal reports whether the current state has no legal successors.
func (m *Machine[S]) IsTerminal() bool { return m.terminals[m.current] }

// CanTransition reports whether target is a legal successor of the current
// state. Terminal states have no legal successors, so this is always false
// once IsTerminal() is true.
func (m *Machine[S]) CanTransition(target S) bool {
	if m.IsTerminal() {
		return false
	}
	for _, s := range m.legal[m.current] {
		if s == target {
			return true
		}
	}
	return false
}

// Transition moves the machine to target, recording reason in history. An
// illegal transition returns a *remerr.Error of KindInvalidTransition naming
// both states and does NOT mutate state.
func (m *Machine[S]) Transition(target S, reason string) error {
	if !m.CanTransition(target) {
		return remerr.New(remerr.KindInvalidTransition,
			fmt.Sprintf("illegal transition %v -> %v", m.current, target), nil)
	}
	m.history = append(m.history, Transition[S]{
		From:   m.current,
		To:     target,
		Reason: reason,
		At:     time.Now(),
	})
	m.current = target
	if m.failureStates[target] {
		m.err = reason
	}
	return nil
}

// Snapshot returns the current (id, current, history, started_at, error)
// view of the machine.
func (m *Machine[S]) Snapshot() Snapshot[S] {
	hist := make([]Transition[S], len(m.history))
	copy(hist, m.history)
	return Snapshot[S]{
		ItemID:    m.itemID,
		Current:   m.current,
		History:   hist,
		StartedAt: m.startedAt,
		Error:     m.err,
	}
}

// ReplayFinalState reconstructs the final state by replaying history from
// initial, without consulting the machine itself. Used by the round-trip
// property test: it must equal Snapshot().Current.
func ReplayFinalState[S comparable](initial S, history []Transition[S]) S {
	cur := initial
	for _, t := range history {
		cur = t.To
	}
	return cur
}
