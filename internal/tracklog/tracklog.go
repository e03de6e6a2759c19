// Package tracklog stores the position feed in a SQLite database, one session
// per process run.
package tracklog

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"xplane-position/internal/position"
)

const schema = `
CREATE TABLE IF NOT EXISTS session (
	id         TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	source     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS status_event (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES session(id),
	ts         TEXT NOT NULL,
	status     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS fix (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL REFERENCES session(id),
	ts            TEXT NOT NULL,
	lat_deg       REAL NOT NULL,
	lon_deg       REAL NOT NULL,
	alt_m         REAL NOT NULL,
	speed_mps     REAL NOT NULL,
	direction_deg REAL NOT NULL,
	accuracy      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS fix_session_ts ON fix(session_id, ts);
`

const defaultQueueLen = 256

type stateReader interface {
	State() position.State
}

type Fix struct {
	Time      time.Time
	Position  position.Coordinates
	SpeedMPS  float64
	Direction float64
	Accuracy  position.AccuracyLevel
}

// entry is one queued write. A non-nil flushed marks a Flush barrier.
type entry struct {
	at      time.Time
	status  position.Status
	fix     *Fix
	flushed chan struct{}
}

// Store implements position.Listener. Notifications are queued and written
// by one worker goroutine, batched into a transaction per wakeup.
type Store struct {
	db      *sql.DB
	session string
	src     stateReader
	now     func() time.Time

	queue     chan entry
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
	dropped   atomic.Uint64

	mu       sync.Mutex
	lastErr  string
	dropping bool
}

// Open creates or opens the database at path and starts a new session.
// source is a free-form label such as the listen address or replay path.
func Open(path, source string, src stateReader) (*Store, error) {
	return open(path, source, src, defaultQueueLen)
}

func open(path, source string, src stateReader, queueLen int) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create track directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open track database: %w", err)
	}
	// One writer; avoids SQLITE_BUSY between the listener and readers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping track database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create track schema: %w", err)
	}

	s := &Store{
		db:      db,
		session: uuid.NewString(),
		src:     src,
		now:     time.Now,
		queue:   make(chan entry, queueLen),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if _, err := db.Exec(
		`INSERT INTO session (id, started_at, source) VALUES (?, ?, ?)`,
		s.session, s.now().UTC().Format(time.RFC3339Nano), source,
	); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("insert track session: %w", err)
	}

	go s.run()

	log.Printf("track log opened path=%s session=%s", path, s.session)
	return s, nil
}

func (s *Store) Session() string { return s.session }

func (s *Store) StatusChanged(st position.Status) {
	s.enqueue(entry{at: s.now(), status: st})
}

func (s *Store) PositionChanged(pos position.Coordinates, acc position.Accuracy) {
	var st position.State
	if s.src != nil {
		st = s.src.State()
	}
	ts := st.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	s.enqueue(entry{fix: &Fix{
		Time:      ts,
		Position:  pos,
		SpeedMPS:  st.SpeedMPS,
		Direction: st.Direction,
		Accuracy:  acc.Level,
	}})
}

// enqueue never blocks; a full queue drops e.
func (s *Store) enqueue(e entry) {
	select {
	case <-s.stop:
		return
	default:
	}
	select {
	case s.queue <- e:
		s.mu.Lock()
		s.dropping = false
		s.mu.Unlock()
	default:
		n := s.dropped.Add(1)
		s.mu.Lock()
		first := !s.dropping
		s.dropping = true
		s.mu.Unlock()
		if first {
			log.Printf("track log queue full, dropping writes session=%s dropped=%d", s.session, n)
		}
	}
}

func (s *Store) run() {
	defer close(s.done)
	for {
		select {
		case e := <-s.queue:
			s.write(s.drain([]entry{e}))
		case <-s.stop:
			if batch := s.drain(nil); len(batch) > 0 {
				s.write(batch)
			}
			return
		}
	}
}

func (s *Store) drain(batch []entry) []entry {
	for {
		select {
		case e := <-s.queue:
			batch = append(batch, e)
		default:
			return batch
		}
	}
}

// write stores batch in one transaction and then releases its Flush
// barriers.
func (s *Store) write(batch []entry) {
	defer func() {
		for _, e := range batch {
			if e.flushed != nil {
				close(e.flushed)
			}
		}
	}()

	tx, err := s.db.Begin()
	if err != nil {
		s.setErr(fmt.Errorf("begin: %w", err))
		return
	}
	for _, e := range batch {
		if err := s.insert(tx, e); err != nil {
			_ = tx.Rollback()
			s.setErr(err)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		s.setErr(fmt.Errorf("commit: %w", err))
		return
	}
	s.setErr(nil)
}

func (s *Store) insert(tx *sql.Tx, e entry) error {
	switch {
	case e.flushed != nil:
		return nil
	case e.fix != nil:
		f := e.fix
		_, err := tx.Exec(
			`INSERT INTO fix (session_id, ts, lat_deg, lon_deg, alt_m, speed_mps, direction_deg, accuracy)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			s.session, f.Time.UTC().Format(time.RFC3339Nano),
			f.Position.LatDeg, f.Position.LonDeg, f.Position.AltM, f.SpeedMPS, f.Direction, f.Accuracy.String(),
		)
		return err
	default:
		_, err := tx.Exec(
			`INSERT INTO status_event (session_id, ts, status) VALUES (?, ?, ?)`,
			s.session, e.at.UTC().Format(time.RFC3339Nano), e.status.String(),
		)
		return err
	}
}

// Flush waits until every write queued before the call has been committed
// or failed.
func (s *Store) Flush() {
	flushed := make(chan struct{})
	select {
	case s.queue <- entry{flushed: flushed}:
	case <-s.done:
		return
	}
	select {
	case <-flushed:
	case <-s.done:
	}
}

// Dropped reports how many writes were discarded because the queue was full.
func (s *Store) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Store) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if msg != "" && msg != s.lastErr {
		log.Printf("track log write failed session=%s: %v", s.session, err)
	}
	s.lastErr = msg
}

func (s *Store) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Fixes returns the fixes of a session in insertion order. An empty session
// selects the current one.
func (s *Store) Fixes(session string) ([]Fix, error) {
	if session == "" {
		session = s.session
	}
	rows, err := s.db.Query(
		`SELECT ts, lat_deg, lon_deg, alt_m, speed_mps, direction_deg, accuracy
		 FROM fix WHERE session_id = ? ORDER BY id`, session)
	if err != nil {
		return nil, fmt.Errorf("query fixes: %w", err)
	}
	defer rows.Close()

	var out []Fix
	for rows.Next() {
		var (
			f      Fix
			ts     string
			levelS string
		)
		if err := rows.Scan(&ts, &f.Position.LatDeg, &f.Position.LonDeg, &f.Position.AltM, &f.SpeedMPS, &f.Direction, &levelS); err != nil {
			return nil, fmt.Errorf("scan fix: %w", err)
		}
		if f.Time, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse fix time %q: %w", ts, err)
		}
		if err := f.Accuracy.UnmarshalText([]byte(levelS)); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Statuses returns the status transitions of a session in order.
func (s *Store) Statuses(session string) ([]position.Status, error) {
	if session == "" {
		session = s.session
	}
	rows, err := s.db.Query(`SELECT status FROM status_event WHERE session_id = ? ORDER BY id`, session)
	if err != nil {
		return nil, fmt.Errorf("query status events: %w", err)
	}
	defer rows.Close()

	var out []position.Status
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan status event: %w", err)
		}
		var st position.Status
		if err := st.UnmarshalText([]byte(name)); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Sessions lists session ids, oldest first.
func (s *Store) Sessions() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM session ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Close writes what is still queued and closes the database.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
