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

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/frontdesk/core"
	"github.com/poiesic/frontdesk/storage"
)

// AnswerRepository implements storage.AnswerStore for BadgerDB.
type AnswerRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.AnswerStore = (*AnswerRepository)(nil)

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(backend *Backend) (*AnswerRepository, error) {
	idSeq, err := backend.GetSequence(answerIDSeq)
	if err != nil {
		return nil, err
	}

	return &AnswerRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *AnswerRepository) Close() error {
	return r.idSeq.Release()
}

// CreateAnswer embeds text and stores a new answer for the query.
func (r *AnswerRepository) CreateAnswer(ctx context.Context, queryID core.ID, author, text string, embed storage.EmbedFunc) (*core.Answer, error) {
	// Cheap check first so a doomed answer never pays for an embedding
	if err := r.backend.View(func(tx *badger.Txn) error {
		return checkAnswerable(tx, queryID)
	}); err != nil {
		return nil, err
	}

	embedding, err := embed(ctx, text)
	if err != nil {
		return nil, err
	}

	id, err := nextID(r.idSeq)
	if err != nil {
		return nil, err
	}

	answer := &core.Answer{
		Id:        id,
		QueryID:   queryID,
		AuthorID:  author,
		Text:      text,
		Embedding: embedding,
		CreatedAt: r.backend.Now(),
	}

	err = r.backend.Update(ctx, func(tx *badger.Txn) error {
		// Re-read inside the writing transaction: a bind that commits after
		// this read makes the commit conflict, and the retry sees the binding.
		if err := checkAnswerable(tx, queryID); err != nil {
			return err
		}
		if err := tx.Set(makeAnswerKey(answer.Id), storage.MarshalAnswer(answer)); err != nil {
			return err
		}
		return tx.Set(makeAnswerDateKey(answer.CreatedAt, answer.Id), storage.MarshalID(answer.Id))
	})
	if err != nil {
		return nil, err
	}
	return answer, nil
}

// GetAnswer retrieves a single answer by ID.
func (r *AnswerRepository) GetAnswer(ctx context.Context, id core.ID) (*core.Answer, error) {
	var result *core.Answer
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		result, err = readAnswer(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: %d", storage.ErrAnswerNotFound, id)
		}
		return nil
	})
	return result, err
}

// GetAnswers retrieves multiple answers by their IDs.
func (r *AnswerRepository) GetAnswers(ctx context.Context, ids ...core.ID) ([]*core.Answer, error) {
	var result []*core.Answer
	err := r.backend.View(func(tx *badger.Txn) error {
		for _, id := range ids {
			answer, err := readAnswer(tx, id)
			if err != nil {
				return err
			}
			if answer != nil {
				result = append(result, answer)
			}
		}
		return nil
	})
	return result, err
}

// ListAnswers returns every answer in creation order.
func (r *AnswerRepository) ListAnswers(ctx context.Context) ([]*core.Answer, error) {
	var results []*core.Answer
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeIndexPrefix(answerDatePrefix)

		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var answerID core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				answerID, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			answer, err := readAnswer(tx, answerID)
			if err != nil {
				return err
			}
			if answer != nil {
				results = append(results, answer)
			}
		}
		return nil
	})
	return results, err
}

// DeleteAnswer removes an answer together with its index and delivery entries.
func (r *AnswerRepository) DeleteAnswer(ctx context.Context, id core.ID) error {
	return r.backend.Update(ctx, func(tx *badger.Txn) error {
		answer, err := readAnswer(tx, id)
		if err != nil {
			return err
		}
		if answer == nil {
			return fmt.Errorf("%w: %d", storage.ErrAnswerNotFound, id)
		}
		if err := tx.Delete(makeAnswerDateKey(answer.CreatedAt, answer.Id)); err != nil {
			return err
		}
		if err := tx.Delete(makeAnswerDeliveredKey(answer.Id)); err != nil {
			return err
		}
		return tx.Delete(makeAnswerKey(answer.Id))
	})
}

// UpdateEmbeddings replaces the stored embeddings of existing answers.
func (r *AnswerRepository) UpdateEmbeddings(ctx context.Context, answers ...*core.Answer) error {
	return r.backend.Update(ctx, func(tx *badger.Txn) error {
		for _, a := range answers {
			stored, err := readAnswer(tx, a.Id)
			if err != nil {
				return err
			}
			if stored == nil {
				return fmt.Errorf("%w: %d", storage.ErrAnswerNotFound, a.Id)
			}
			stored.Embedding = a.Embedding
			if err := tx.Set(makeAnswerKey(stored.Id), storage.MarshalAnswer(stored)); err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkDelivered records that an answer was relayed to its requester.
func (r *AnswerRepository) MarkDelivered(ctx context.Context, id core.ID) error {
	return r.backend.Update(ctx, func(tx *badger.Txn) error {
		answer, err := readAnswer(tx, id)
		if err != nil {
			return err
		}
		if answer == nil {
			return fmt.Errorf("%w: %d", storage.ErrAnswerNotFound, id)
		}
		return tx.Set(makeAnswerDeliveredKey(id), storage.MarshalID(id))
	})
}

// IsDelivered reports whether the answer was marked delivered.
func (r *AnswerRepository) IsDelivered(ctx context.Context, id core.ID) (bool, error) {
	var delivered bool
	err := r.backend.View(func(tx *badger.Txn) error {
		_, err := tx.Get(makeAnswerDeliveredKey(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		delivered = true
		return nil
	})
	return delivered, err
}

// checkAnswerable fails unless the query exists and has no answer bound.
func checkAnswerable(tx *badger.Txn, queryID core.ID) error {
	query, err := readQuery(tx, queryID)
	if err != nil {
		return err
	}
	if query == nil {
		return fmt.Errorf("%w: %d", storage.ErrQueryNotFound, queryID)
	}
	if query.IsResolved() {
		return fmt.Errorf("%w: query %d already has answer %d: %w",
			core.ErrDuplicateAnswer, queryID, query.AnswerID, core.ErrAlreadyResolved)
	}
	return nil
}

// readAnswer reads an answer from the transaction. Returns nil, nil if absent.
func readAnswer(tx *badger.Txn, id core.ID) (*core.Answer, error) {
	item, err := tx.Get(makeAnswerKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var answer *core.Answer
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		answer, unmarshalErr = storage.UnmarshalAnswer(val)
		return unmarshalErr
	})
	return answer, err
}
