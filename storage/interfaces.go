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


package storage

import (
	"context"

	"github.com/poiesic/frontdesk/core"
)

// EmbedFunc computes the embedding for a piece of answer text.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close releases resources held by the repository.
	Close() error
}

// QueryLedger owns query records and their lifecycle state.
type QueryLedger interface {
	Repository

	// CreateQuery stores a new pending query. The ledger assigns the ID,
	// the creation and update timestamps, and the deadline (creation time
	// plus the configured SLA).
	CreateQuery(ctx context.Context, body, requester string, qc core.QueryContext) (*core.Query, error)

	// GetQuery retrieves a single query by ID.
	// Returns ErrQueryNotFound if the query doesn't exist.
	GetQuery(ctx context.Context, id core.ID) (*core.Query, error)

	// ListQueries returns queries with the given status, most recently created
	// first. An empty status returns every query.
	ListQueries(ctx context.Context, status core.Status) ([]*core.Query, error)

	// BindAnswer atomically sets the query's answer if, and only if, no answer
	// is bound yet, moving it to resolved.
	// Returns core.ErrAlreadyResolved if an answer is already bound and
	// ErrQueryNotFound if the query doesn't exist.
	BindAnswer(ctx context.Context, queryID, answerID core.ID, resolver string) (*core.Query, error)

	// MarkExpired moves an unanswered query to unresolved. It is a no-op for
	// resolved and already unresolved queries and is safe to call repeatedly.
	// Returns ErrQueryNotFound if the query doesn't exist.
	MarkExpired(ctx context.Context, queryID core.ID) (*core.Query, error)
}

// AnswerStore owns answer records.
type AnswerStore interface {
	Repository

	// CreateAnswer embeds the text with embed and stores a new answer for the
	// query. The query is re-read in the writing transaction.
	// Returns ErrQueryNotFound if the query doesn't exist and an error matching
	// both core.ErrDuplicateAnswer and core.ErrAlreadyResolved if the query
	// already has an answer bound.
	CreateAnswer(ctx context.Context, queryID core.ID, author, text string, embed EmbedFunc) (*core.Answer, error)

	// GetAnswer retrieves a single answer by ID.
	// Returns ErrAnswerNotFound if the answer doesn't exist.
	GetAnswer(ctx context.Context, id core.ID) (*core.Answer, error)

	// GetAnswers retrieves multiple answers by their IDs.
	// Returns only the answers that exist (no error for missing answers).
	GetAnswers(ctx context.Context, ids ...core.ID) ([]*core.Answer, error)

	// ListAnswers returns every answer in creation order.
	ListAnswers(ctx context.Context) ([]*core.Answer, error)

	// DeleteAnswer removes an answer. Only used to retract an answer that
	// never became bound. Returns ErrAnswerNotFound if it doesn't exist.
	DeleteAnswer(ctx context.Context, id core.ID) error

	// UpdateEmbeddings replaces the stored embeddings of existing answers.
	// Text and linkage are left untouched.
	UpdateEmbeddings(ctx context.Context, answers ...*core.Answer) error

	// MarkDelivered records that an answer was relayed to its requester.
	// Idempotent. Returns ErrAnswerNotFound if the answer doesn't exist.
	MarkDelivered(ctx context.Context, id core.ID) error

	// IsDelivered reports whether MarkDelivered was called for the answer.
	IsDelivered(ctx context.Context, id core.ID) (bool, error)
}

// VectorIndex answers nearest-neighbor queries over answer embeddings.
// It is a derived projection of AnswerStore and may be rebuilt at any time.
type VectorIndex interface {
	// Insert adds or replaces the entry for answerID.
	// Returns core.ErrDimensionMismatch if the embedding has the wrong length.
	Insert(answerID core.ID, embedding []float32) error

	// Remove deletes the entry for answerID. No-op if absent.
	Remove(answerID core.ID)

	// Contains reports whether answerID has an entry.
	Contains(answerID core.ID) bool

	// Search returns at most topK entries by descending similarity, the most
	// recent answer first among equal scores. An empty index yields an empty
	// result. Returns core.ErrInvalidArgument if topK <= 0.
	Search(query []float32, topK int) ([]core.SimilarityMatch, error)

	// Len returns the number of entries.
	Len() int

	// Entries returns a copy of every entry ordered by answer ID.
	Entries() []core.VectorEntry

	// Dimensions returns the embedding length the index accepts.
	Dimensions() int

	// Clear removes every entry.
	Clear()
}
