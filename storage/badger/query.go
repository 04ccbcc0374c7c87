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
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/frontdesk/core"
	"github.com/poiesic/frontdesk/storage"
)

// DefaultSLA is how long a query may stay pending before it lapses to unresolved.
const DefaultSLA = 24 * time.Hour

// QueryRepository implements storage.QueryLedger for BadgerDB.
type QueryRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
	sla     time.Duration
}

var _ storage.QueryLedger = (*QueryRepository)(nil)

// NewQueryRepository creates a new QueryRepository. New queries get a deadline
// of creation time plus sla; a non-positive sla selects DefaultSLA.
func NewQueryRepository(backend *Backend, sla time.Duration) (*QueryRepository, error) {
	idSeq, err := backend.GetSequence(queryIDSeq)
	if err != nil {
		return nil, err
	}
	if sla <= 0 {
		sla = DefaultSLA
	}

	return &QueryRepository{
		backend: backend,
		idSeq:   idSeq,
		sla:     sla,
	}, nil
}

// Close releases the ID sequence.
func (r *QueryRepository) Close() error {
	return r.idSeq.Release()
}

// SLA returns the resolution window applied to new queries.
func (r *QueryRepository) SLA() time.Duration {
	return r.sla
}

// CreateQuery stores a new pending query.
func (r *QueryRepository) CreateQuery(ctx context.Context, body, requester string, qc core.QueryContext) (*core.Query, error) {
	id, err := nextID(r.idSeq)
	if err != nil {
		return nil, err
	}

	now := r.backend.Now()
	query := &core.Query{
		Id:          id,
		Body:        body,
		RequesterID: requester,
		RoomName:    qc.RoomName,
		JobID:       qc.JobID,
		Status:      core.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		Deadline:    now.Add(r.sla),
	}

	err = r.backend.Update(ctx, func(tx *badger.Txn) error {
		if err := tx.Set(makeQueryKey(query.Id), storage.MarshalQuery(query)); err != nil {
			return err
		}
		return tx.Set(makeQueryDateKey(query.CreatedAt, query.Id), storage.MarshalID(query.Id))
	})
	if err != nil {
		return nil, err
	}
	return query, nil
}

// GetQuery retrieves a single query by ID.
func (r *QueryRepository) GetQuery(ctx context.Context, id core.ID) (*core.Query, error) {
	var result *core.Query
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		result, err = readQuery(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: %d", storage.ErrQueryNotFound, id)
		}
		return nil
	})
	return result, err
}

// ListQueries returns queries with the given status, newest first.
func (r *QueryRepository) ListQueries(ctx context.Context, status core.Status) ([]*core.Query, error) {
	var results []*core.Query
	err := r.backend.View(func(tx *badger.Txn) error {
		prefix := makeIndexPrefix(queryDatePrefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true

		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek past the last possible key with this prefix
		for iter.Seek(append(prefix, 0xFF)); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var queryID core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				queryID, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			query, err := readQuery(tx, queryID)
			if err != nil {
				return err
			}
			if query == nil {
				continue
			}
			if status != "" && query.Status != status {
				continue
			}
			results = append(results, query)
		}
		return nil
	})
	return results, err
}

// BindAnswer sets the query's answer if none is bound yet.
func (r *QueryRepository) BindAnswer(ctx context.Context, queryID, answerID core.ID, resolver string) (*core.Query, error) {
	var result *core.Query
	err := r.backend.Update(ctx, func(tx *badger.Txn) error {
		query, err := readQuery(tx, queryID)
		if err != nil {
			return err
		}
		if query == nil {
			return fmt.Errorf("%w: %d", storage.ErrQueryNotFound, queryID)
		}
		if query.IsResolved() {
			return fmt.Errorf("%w: query %d is bound to answer %d", core.ErrAlreadyResolved, queryID, query.AnswerID)
		}

		// The answer must be durable and belong to this query before the
		// ledger may reference it.
		answer, err := readAnswer(tx, answerID)
		if err != nil {
			return err
		}
		if answer == nil {
			return fmt.Errorf("%w: %d", storage.ErrAnswerNotFound, answerID)
		}
		if answer.QueryID != queryID {
			return fmt.Errorf("%w: answer %d belongs to query %d, not %d",
				core.ErrInvalidArgument, answerID, answer.QueryID, queryID)
		}

		now := r.backend.Now()
		query.AnswerID = answerID
		query.Status = core.StatusResolved
		query.ResolvedBy = resolver
		query.LastResponseAt = now
		query.UpdatedAt = now
		if err := tx.Set(makeQueryKey(query.Id), storage.MarshalQuery(query)); err != nil {
			return err
		}
		result = query
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkExpired moves a pending, unanswered query to unresolved.
func (r *QueryRepository) MarkExpired(ctx context.Context, queryID core.ID) (*core.Query, error) {
	var result *core.Query
	err := r.backend.Update(ctx, func(tx *badger.Txn) error {
		query, err := readQuery(tx, queryID)
		if err != nil {
			return err
		}
		if query == nil {
			return fmt.Errorf("%w: %d", storage.ErrQueryNotFound, queryID)
		}
		result = query

		// Same guard as BindAnswer: once an answer is bound, expiry is a no-op.
		if query.IsResolved() || query.Status != core.StatusPending {
			return nil
		}

		query.Status = core.StatusUnresolved
		query.UpdatedAt = r.backend.Now()
		return tx.Set(makeQueryKey(query.Id), storage.MarshalQuery(query))
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// readQuery reads a query from the transaction. Returns nil, nil if absent.
func readQuery(tx *badger.Txn, id core.ID) (*core.Query, error) {
	item, err := tx.Get(makeQueryKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var query *core.Query
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		query, unmarshalErr = storage.UnmarshalQuery(val)
		return unmarshalErr
	})
	return query, err
}
