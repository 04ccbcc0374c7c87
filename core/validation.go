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
	"fmt"
	"strings"
)

// QueryContext identifies where a query came from.
type QueryContext struct {
	RoomName string
	JobID    string
}

// ValidateSubmission validates the caller-supplied fields of a new query.
//
// Validation rules:
//   - Body must not be blank
//   - Requester must not be blank
//   - Room name and job ID must not be blank
//
// Every failure wraps ErrInvalidArgument.
func ValidateSubmission(body, requester string, qc QueryContext) error {
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: %w: %w", ErrInvalidArgument, ErrInvalidQuery, ErrEmptyBody)
	}
	if strings.TrimSpace(requester) == "" {
		return fmt.Errorf("%w: %w: %w", ErrInvalidArgument, ErrInvalidQuery, ErrEmptyRequester)
	}
	if strings.TrimSpace(qc.RoomName) == "" {
		return fmt.Errorf("%w: %w: %w", ErrInvalidArgument, ErrInvalidQuery, ErrEmptyRoomName)
	}
	if strings.TrimSpace(qc.JobID) == "" {
		return fmt.Errorf("%w: %w: %w", ErrInvalidArgument, ErrInvalidQuery, ErrEmptyJobID)
	}
	return nil
}

// ValidateAnswerInput validates the caller-supplied fields of a new answer.
func ValidateAnswerInput(author, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: %w: %w", ErrInvalidArgument, ErrInvalidAnswer, ErrEmptyText)
	}
	if strings.TrimSpace(author) == "" {
		return fmt.Errorf("%w: %w: %w", ErrInvalidArgument, ErrInvalidAnswer, ErrEmptyAuthor)
	}
	return nil
}

// ValidateStatusFilter accepts the empty filter (all statuses) or a known status.
func ValidateStatusFilter(s Status) error {
	if s == "" || s.Valid() {
		return nil
	}
	return fmt.Errorf("%w: %w: %q", ErrInvalidArgument, ErrInvalidStatus, string(s))
}

// CheckInvariant verifies that AnswerID is set if and only if the query is resolved.
func CheckInvariant(q *Query) error {
	resolved := q.Status == StatusResolved
	if resolved != q.IsResolved() {
		return fmt.Errorf("query %d: status %s with answer id %d", q.Id, q.Status, q.AnswerID)
	}
	return nil
}

// ValidateDimension checks that an embedding has exactly dim components.
func ValidateDimension(embedding []float32, dim int) error {
	if len(embedding) != dim {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, dim, len(embedding))
	}
	return nil
}
