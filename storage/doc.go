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


// Package storage provides the storage abstraction layer for frontdesk.
//
// This package defines repository interfaces that decouple storage implementation
// from the triage engine. QueryLedger owns query records and their lifecycle
// state; AnswerStore owns answer records.
//
// # Constructor Return Type Pattern
//
// Public constructors in implementation packages return concrete types so the
// caller can close them, and every concrete type asserts the interface it
// satisfies:
//
//	var _ storage.QueryLedger = (*QueryRepository)(nil)
//
// # Atomic Binding
//
// QueryLedger.BindAnswer is a compare-and-set on a single query record: it
// succeeds only if no answer is bound yet. MarkExpired is guarded by the same
// check. Implementations scope the check to one record; binds on different
// queries never contend.
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	queries, answers, backend, err := badger.NewMemoryRepositories()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support. Pass context.Background() for operations
// without specific timeout requirements.
package storage
