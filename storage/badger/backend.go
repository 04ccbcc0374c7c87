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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/frontdesk/core"
	"github.com/poiesic/frontdesk/storage"
)

const (
	defaultSequenceBandwidth  = 100
	defaultMaxConflictRetries = 32
)

// Backend wraps a BadgerDB instance and provides low-level operations.
type Backend struct {
	db                 *badger.DB
	clock              core.Clock
	maxConflictRetries int
	logger             *slog.Logger
}

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithClock sets the time source used for record timestamps and deadlines.
// Default is core.SystemClock.
func WithClock(clock core.Clock) BackendOption {
	return func(b *Backend) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// WithMaxConflictRetries sets how many times a conflicting read-write
// transaction is re-run before Update gives up with storage.ErrConflict.
func WithMaxConflictRetries(n int) BackendOption {
	return func(b *Backend) {
		if n > 0 {
			b.maxConflictRetries = n
		}
	}
}

// WithBackendLogger sets the logger used by the backend and BadgerDB itself.
func WithBackendLogger(logger *slog.Logger) BackendOption {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBackend opens a BadgerDB database at the specified path.
// Creates the directory if it doesn't exist.
func OpenBackend(filePath string, inMemory bool, opts ...BackendOption) (*Backend, error) {
	b := &Backend{
		clock:              core.SystemClock{},
		maxConflictRetries: defaultMaxConflictRetries,
		logger:             slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}

	var badgerOpts badger.Options

	if inMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		// Ensure directory exists
		info, err := os.Stat(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				if err := os.MkdirAll(filePath, 0755); err != nil {
					return nil, err
				}
				info, err = os.Stat(filePath)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", filePath)
		}
		badgerOpts = badger.DefaultOptions(filePath)
	}

	badgerOpts.Logger = &badgerLoggerAdapter{logger: b.logger.With("component", "badger")}
	badgerOpts.Compression = options.None

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, err
	}
	b.db = db
	return b, nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// Now returns the current time from the backend's clock, truncated to the
// microsecond precision records are stored with.
func (b *Backend) Now() time.Time {
	return b.clock.Now().Truncate(time.Microsecond)
}

// WithTx executes a function within a BadgerDB transaction.
// If isWrite is true, creates a read-write transaction.
// The transaction is automatically discarded when fn returns; fn must commit
// explicitly to persist writes.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	if b.db.IsClosed() {
		return fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, badger.ErrDBClosed)
	}
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return translateError(fn(tx))
}

// View executes fn within a read-only transaction.
func (b *Backend) View(fn func(tx *badger.Txn) error) error {
	return b.WithTx(fn, false)
}

// Update executes fn within a read-write transaction and commits it.
//
// BadgerDB tracks every key read in the transaction; if another transaction
// commits a write to one of those keys first, Commit fails with
// badger.ErrConflict. Update then re-runs fn from scratch against fresh data,
// which turns a read-check-write in fn into a per-record compare-and-set.
// fn must not keep state across attempts other than what it reassigns.
func (b *Backend) Update(ctx context.Context, fn func(tx *badger.Txn) error) error {
	for attempt := 1; attempt <= b.maxConflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := b.WithTx(func(tx *badger.Txn) error {
			if err := fn(tx); err != nil {
				return err
			}
			return tx.Commit()
		}, true)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		b.logger.Debug("transaction conflict, retrying", "attempt", attempt)
	}
	return storage.ErrConflict
}

// GetSequence returns a BadgerDB sequence for generating sequential IDs.
func (b *Backend) GetSequence(name string) (*badger.Sequence, error) {
	return b.db.GetSequence([]byte(name), defaultSequenceBandwidth)
}

// nextID draws the next non-zero ID from seq.
func nextID(seq *badger.Sequence) (core.ID, error) {
	id, err := seq.Next()
	if err != nil {
		return 0, translateError(err)
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if id == 0 {
		id, err = seq.Next()
		if err != nil {
			return 0, translateError(err)
		}
	}
	return core.ID(id), nil
}

// translateError maps BadgerDB failures that callers may retry onto
// storage.ErrStorageUnavailable. Everything else passes through unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrStorageUnavailable) {
		return err
	}
	if errors.Is(err, badger.ErrDBClosed) || errors.Is(err, badger.ErrBlockedWrites) {
		return fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, err)
	}
	return err
}
