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

import "errors"

// Domain errors
var (
	// ErrAlreadyResolved indicates the query already has an answer bound.
	// Recoverable: the caller lost a binding race or answered twice.
	ErrAlreadyResolved = errors.New("query already resolved")

	// ErrDuplicateAnswer indicates an answer was submitted for a query that
	// already has one. Errors of this kind also match ErrAlreadyResolved.
	ErrDuplicateAnswer = errors.New("duplicate answer")

	// ErrDimensionMismatch indicates an embedding of the wrong length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidArgument indicates a caller error that must not be retried.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Validation errors
var (
	// ErrInvalidQuery indicates a Query failed validation.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidAnswer indicates an Answer failed validation.
	ErrInvalidAnswer = errors.New("invalid answer")

	// ErrEmptyBody indicates the query body is empty.
	ErrEmptyBody = errors.New("query body cannot be empty")

	// ErrEmptyRequester indicates the requester identifier is empty.
	ErrEmptyRequester = errors.New("requester cannot be empty")

	// ErrEmptyRoomName indicates the originating room is missing.
	ErrEmptyRoomName = errors.New("room name cannot be empty")

	// ErrEmptyJobID indicates the originating job is missing.
	ErrEmptyJobID = errors.New("job id cannot be empty")

	// ErrEmptyText indicates the answer text is empty.
	ErrEmptyText = errors.New("answer text cannot be empty")

	// ErrEmptyAuthor indicates the answer author is empty.
	ErrEmptyAuthor = errors.New("answer author cannot be empty")

	// ErrInvalidStatus indicates an unknown lifecycle status.
	ErrInvalidStatus = errors.New("invalid status")
)
