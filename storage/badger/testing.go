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


package badger

import (
	"time"

	"github.com/poiesic/frontdesk/core"
)

// NewMemoryRepositories creates in-memory query and answer repositories for testing.
// A nil clock selects core.SystemClock; a non-positive sla selects DefaultSLA.
// Caller must close both repos and backend when done.
func NewMemoryRepositories(clock core.Clock, sla time.Duration) (*QueryRepository, *AnswerRepository, *Backend, error) {
	backend, err := OpenBackend("", true, WithClock(clock))
	if err != nil {
		return nil, nil, nil, err
	}

	queryRepo, err := NewQueryRepository(backend, sla)
	if err != nil {
		backend.Close()
		return nil, nil, nil, err
	}

	answerRepo, err := NewAnswerRepository(backend)
	if err != nil {
		queryRepo.Close()
		backend.Close()
		return nil, nil, nil, err
	}

	return queryRepo, answerRepo, backend, nil
}
