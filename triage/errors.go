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


package triage

import (
	"errors"
	"fmt"

	"github.com/poiesic/frontdesk/core"
)

var (
	// ErrLedgerRequired is returned when a query ledger is not provided.
	ErrLedgerRequired = errors.New("query ledger required")

	// ErrAnswerStoreRequired is returned when an answer store is not provided.
	ErrAnswerStoreRequired = errors.New("answer store required")

	// ErrIndexRequired is returned when a vector index is not provided.
	ErrIndexRequired = errors.New("vector index required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrOrphanedAnswer indicates an answer was stored but could neither be
	// bound to its query nor removed again. ReconcileOrphans cleans it up.
	ErrOrphanedAnswer = errors.New("orphaned answer")
)

// OrphanedAnswerError reports an answer left in storage without a binding.
type OrphanedAnswerError struct {
	AnswerID  core.ID
	QueryID   core.ID
	BindErr   error // why binding failed
	DeleteErr error // why the rollback failed
}

func (e *OrphanedAnswerError) Error() string {
	return fmt.Sprintf("answer %d for query %d is orphaned: bind: %v; rollback: %v",
		e.AnswerID, e.QueryID, e.BindErr, e.DeleteErr)
}

// Is matches ErrOrphanedAnswer.
func (e *OrphanedAnswerError) Is(target error) bool {
	return target == ErrOrphanedAnswer
}

// Unwrap exposes both underlying failures to errors.Is and errors.As.
func (e *OrphanedAnswerError) Unwrap() []error {
	return []error{e.BindErr, e.DeleteErr}
}
