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
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrQueryNotFound indicates that the referenced query does not exist.
	ErrQueryNotFound = fmt.Errorf("query %w", ErrNotFound)

	// ErrAnswerNotFound indicates that the referenced answer does not exist.
	ErrAnswerNotFound = fmt.Errorf("answer %w", ErrNotFound)

	// ErrConflict indicates a transaction kept conflicting with concurrent
	// writers and gave up.
	ErrConflict = errors.New("transaction conflict")

	// ErrStorageUnavailable indicates a transient storage failure. Callers
	// may retry with backoff.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")
)
