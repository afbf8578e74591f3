package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Store owns the connections to the catalog database: a single writable
// connection serializing all mutations, plus a small pool for reads.
type Store struct {
	writer *sql.DB
	reader *sql.DB
	path   string

	// writeMu serializes transactions; SQLite allows a single writer and
	// the update-hook contract requires commit-ordered hook delivery.
	writeMu sync.Mutex

	cache *EntityCache
	hooks hookRegistry
}

// Open opens or creates the catalog database at the given path.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=recursive_triggers(1)&_pragma=synchronous(NORMAL)", path)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	writer.SetMaxOpenConns(1)
	writer.SetMaxIdleConns(1)
	writer.SetConnMaxLifetime(0)

	reader, err := sql.Open("sqlite", dsn+"&mode=ro")
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to open read pool: %w", err)
	}
	reader.SetMaxOpenConns(4)

	return &Store{
		writer: writer,
		reader: reader,
		path:   path,
		cache:  NewEntityCache(),
	}, nil
}

// Close closes both connection pools.
func (s *Store) Close() error {
	s.reader.Close()
	return s.writer.Close()
}

// Path returns the on-disk location of the database file.
func (s *Store) Path() string {
	return s.path
}

// Cache returns the entity identity map backing this store.
func (s *Store) Cache() *EntityCache {
	return s.cache
}

// QueryRow runs a read-only single-row query against the read pool.
func (s *Store) QueryRow(query string, args ...interface{}) *sql.Row {
	return s.reader.QueryRow(query, args...)
}

// Query runs a read-only query against the read pool.
func (s *Store) Query(query string, args ...interface{}) (*sql.Rows, error) {
	rows, err := s.reader.Query(query, args...)
	return rows, classifyError(err)
}

// Exec runs a single write statement in its own transaction. It records
// no hook events: no update hook fires and no cache entry is evicted.
func (s *Store) Exec(query string, args ...interface{}) (sql.Result, error) {
	var res sql.Result
	err := s.Transaction(func(tx *Tx) error {
		var err error
		res, err = tx.Exec(query, args...)
		return err
	})
	return res, err
}

// Tx is a scoped write transaction. Hook events recorded during the
// transaction are delivered synchronously when the transaction commits,
// before Transaction returns.
type Tx struct {
	tx     *sql.Tx
	store  *Store
	events []hookEvent
}

// Exec runs a write statement inside the transaction.
func (t *Tx) Exec(query string, args ...interface{}) (sql.Result, error) {
	res, err := t.tx.Exec(query, args...)
	return res, classifyError(err)
}

// Query runs a query inside the transaction.
func (t *Tx) Query(query string, args ...interface{}) (*sql.Rows, error) {
	rows, err := t.tx.Query(query, args...)
	return rows, classifyError(err)
}

// QueryRow runs a single-row query inside the transaction.
func (t *Tx) QueryRow(query string, args ...interface{}) *sql.Row {
	return t.tx.QueryRow(query, args...)
}

// touch records a hook event for delivery at commit time. Events also
// drive cache eviction, so they are recorded even with no hook installed.
func (t *Tx) touch(table string, op HookOp, rowID int64) {
	t.events = append(t.events, hookEvent{table: table, op: op, rowID: rowID})
}

// Transaction runs fn inside a write transaction. On error the
// transaction rolls back and no hook fires. Nested work goes through
// Tx.Transaction, which coalesces into the outermost transaction;
// calling Store.Transaction again from inside fn blocks on the write lock.
func (s *Store) Transaction(fn func(*Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.transactionLocked(fn)
}

func (s *Store) transactionLocked(fn func(*Tx) error) error {
	tx, err := s.writer.Begin()
	if err != nil {
		return classifyError(err)
	}

	wrapped := &Tx{tx: tx, store: s}
	if err := fn(wrapped); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return classifyError(err)
	}

	// The write lock is still held: evictions and notifications observe
	// commit order.
	s.applyEvictions(wrapped.events)
	s.hooks.fire(wrapped.events)
	return nil
}

// tableKinds maps hook tables to cache kinds for eviction.
var tableKinds = map[string]EntityKind{
	TableMedia:       KindMedia,
	TableFile:        KindFile,
	TableFolder:      KindFolder,
	TableDevice:      KindDevice,
	TableAlbum:       KindAlbum,
	TableAlbumTrack:  KindAlbumTrack,
	TableArtist:      KindArtist,
	TableGenre:       KindGenre,
	TablePlaylist:    KindPlaylist,
	TableShow:        KindShow,
	TableShowEpisode: KindShowEpisode,
	TableMovie:       KindMovie,
	TableLabel:       KindLabel,
}

func (s *Store) applyEvictions(events []hookEvent) {
	for _, ev := range events {
		if ev.op != HookDelete {
			continue
		}
		if kind, ok := tableKinds[ev.table]; ok {
			s.cache.Remove(kind, ev.rowID)
		}
	}
}

// Transaction on a Tx coalesces into the already-open transaction:
// there is no nested begin, and the outermost commit decides.
func (t *Tx) Transaction(fn func(*Tx) error) error {
	return fn(t)
}

// WithRetries retries fn up to attempts times while it fails with a Busy
// error, backing off exponentially between attempts.
func (s *Store) WithRetries(attempts int, fn func() error) error {
	backoff := 10 * time.Millisecond
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !IsKind(err, ErrBusy) {
			return err
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return err
}

// WeakContext runs fn with foreign-key enforcement and recursive trigger
// firing disabled. Reserved for schema migrations.
func (s *Store) WeakContext(fn func(*Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.writer.Exec("PRAGMA foreign_keys = OFF"); err != nil {
		return classifyError(err)
	}
	if _, err := s.writer.Exec("PRAGMA recursive_triggers = OFF"); err != nil {
		return classifyError(err)
	}
	defer func() {
		s.writer.Exec("PRAGMA foreign_keys = ON")
		s.writer.Exec("PRAGMA recursive_triggers = ON")
	}()

	return s.transactionLocked(fn)
}

// CheckIntegrity runs PRAGMA integrity_check on the database.
func (s *Store) CheckIntegrity() error {
	var result string
	if err := s.writer.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return &Error{Kind: ErrCorrupt, err: fmt.Errorf("integrity check failed: %s", result)}
	}
	return nil
}
