// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// Record IDs come from database sequences and are never zero, so the zero
// value doubles as "unset".
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Status is the lifecycle state of a query.
type Status string

const (
	// StatusPending is the initial state; the query awaits an answer.
	StatusPending Status = "pending"
	// StatusResolved means an answer is bound. Terminal.
	StatusResolved Status = "resolved"
	// StatusUnresolved means the deadline passed with no answer bound.
	// An operator may still resolve it.
	StatusUnresolved Status = "unresolved"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusResolved, StatusUnresolved:
		return true
	}
	return false
}

// Query is an incoming request requiring an answer.
type Query struct {
	Id             ID
	Body           string
	RequesterID    string
	RoomName       string // originating context
	JobID          string // originating context
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Deadline       time.Time
	AnswerID       ID        // zero unless Status is StatusResolved
	ResolvedBy     string    // empty unless resolved
	LastResponseAt time.Time // zero unless resolved
}

// IsResolved reports whether an answer is bound to the query.
func (q *Query) IsResolved() bool {
	return q.AnswerID != 0
}

// IsOverdue reports whether the query is still pending at or after its deadline.
// Both the lazy read path and the sweeper use this comparison.
func (q *Query) IsOverdue(now time.Time) bool {
	return q.Status == StatusPending && q.AnswerID == 0 && !now.Before(q.Deadline)
}

// Answer is a resolution bound to exactly one query. Answers are immutable.
type Answer struct {
	Id        ID
	QueryID   ID
	AuthorID  string
	Text      string
	Embedding []float32
	CreatedAt time.Time
}

// VectorEntry is an (answer, embedding) pair held by a vector index.
type VectorEntry struct {
	AnswerID  ID
	Embedding []float32
}

// SimilarityMatch is a raw hit from a vector index.
type SimilarityMatch struct {
	AnswerID ID
	Score    float32
}

// MatchResult is a similarity hit hydrated with the answer text and the query
// the answer was originally given for. Not persisted.
type MatchResult struct {
	AnswerID  ID
	QueryID   ID
	Score     float32
	Text      string
	CreatedAt time.Time
}
