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


// Package triage routes incoming questions to past answers or to a human.
//
// The Engine coordinates three stores. The query ledger owns each query's
// lifecycle (pending, resolved, unresolved). The answer store owns answer
// text. The vector index is a rebuildable projection of answer embeddings.
//
// # Binding
//
// At most one answer binds to a query. Binding is a compare-and-set in the
// ledger, so concurrent SubmitAnswer calls on one query produce one success
// and errors matching core.ErrAlreadyResolved for the rest. Expiry goes
// through the same check and never overrides a bound answer.
//
// # Auto-resolve
//
// When a new query's best match scores above Config.AutoResolveThreshold and
// Config.Policy is AutoResolveBind (DefaultAutoResolvePolicy), the matched
// text is bound immediately under AutoResolverID. Such answers are final.
//
// # Expiry
//
// Queries left pending past their deadline become unresolved. Reads expire
// overdue queries lazily; SweepExpired and Sweeper expire them in bulk. Both
// use core.Query.IsOverdue against the engine clock.
package triage
