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


// Package frontdesk triages incoming questions against a corpus of past
// answers.
//
// A Desk opens the BadgerDB-backed query ledger and answer store, the
// embedding client and an in-memory cosine index, and wires them into a
// triage.Engine. New queries are matched against earlier answers and may be
// resolved automatically; the rest wait for an operator until their deadline
// lapses.
//
// Service is the request/response boundary used by transport layers. Its
// JSON shapes carry IDs as decimal strings.
//
// Basic usage:
//
//	desk, err := frontdesk.OpenDesk(ctx, "./frontdesk.db",
//	    frontdesk.WithAIConfig(ai.NewConfig(ai.WithEmbeddingHost("http://localhost:11434"))),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer desk.Close()
//
//	svc := desk.NewService()
//	resp, err := svc.SubmitQuery(ctx, frontdesk.CreateQueryRequest{
//	    Query: "how do I reset my password?", UserID: "u-17", RoomName: "lobby", JobID: "job-4",
//	})
package frontdesk
