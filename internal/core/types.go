// Package core contains the core domain types for dbate.
package core

import (
	"time"
)

// DebateState represents the lifecycle state of a debate.
type DebateState string

const (
	StateAwaitingOpponent DebateState = "AWAITING_OPPONENT"
	StateInProgress       DebateState = "IN_PROGRESS"
	StateClosed           DebateState = "CLOSED"
)

// States returns every known debate state.
func States() []DebateState {
	return []DebateState{StateAwaitingOpponent, StateInProgress, StateClosed}
}

// Valid reports whether s is one of the known debate states.
func (s DebateState) Valid() bool {
	switch s {
	case StateAwaitingOpponent, StateInProgress, StateClosed:
		return true
	}
	return false
}

// ArgumentTypeMotion marks the opening statement of a debate.
// Every other argument type is a free-form tag.
const ArgumentTypeMotion = "MOTION"

// Common argument types and roles. The store accepts any non-empty tag.
const (
	ArgumentTypeClaim    = "CLAIM"
	ArgumentTypeRebuttal = "REBUTTAL"
	ArgumentTypeRuling   = "RULING"

	RoleProposer   = "PROPOSER"
	RoleOpponent   = "OPPONENT"
	RoleArbitrator = "ARBITRATOR"
)

// Debate is a top-level record representing one structured exchange.
type Debate struct {
	ID         string      `json:"id" yaml:"id"`
	Title      string      `json:"title" yaml:"title"`
	DebateType string      `json:"debate_type" yaml:"debate_type"`
	State      DebateState `json:"state" yaml:"state"`
	CreatedAt  time.Time   `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at" yaml:"updated_at"`
}

// IsClosed returns true if the debate no longer accepts arguments.
func (d *Debate) IsClosed() bool {
	return d.State == StateClosed
}

// Argument is one entry in a debate's append-only log.
type Argument struct {
	ID              string    `json:"id" yaml:"id"`
	DebateID        string    `json:"debate_id" yaml:"debate_id"`
	ParentID        string    `json:"parent_id,omitempty" yaml:"parent_id,omitempty"` // threading, empty for top-level
	Type            string    `json:"type" yaml:"type"`
	Role            string    `json:"role" yaml:"role"`
	Content         string    `json:"content" yaml:"content"`
	ClientRequestID string    `json:"client_request_id,omitempty" yaml:"client_request_id,omitempty"`
	Seq             int64     `json:"seq" yaml:"seq"` // per-debate, starts at 1
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
}

// IsMotion returns true if the argument is the debate's opening statement.
func (a *Argument) IsMotion() bool {
	return a.Type == ArgumentTypeMotion
}

// DebateView is a debate together with its motion and a window of its thread.
type DebateView struct {
	Debate    *Debate     `json:"debate" yaml:"debate"`
	Motion    *Argument   `json:"motion,omitempty" yaml:"motion,omitempty"`
	Arguments []*Argument `json:"arguments" yaml:"arguments"`
}

// DebatePage is one page of a debate listing.
type DebatePage struct {
	Items  []*Debate `json:"items"`
	Total  int       `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}
