package parser

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/marcboeker/go-duckdb"

	"github.com/uav-shift/backend/internal/models"
)

// DuckOptions tunes the DuckDB connection behind a DuckTrack.
type DuckOptions struct {
	MemoryLimit string // e.g. "1GB"
	Threads     int
	BatchSize   int
	Logger      *log.Logger
}

// DefaultDuckOptions mirrors the defaults of the config file.
func DefaultDuckOptions() DuckOptions {
	return DuckOptions{
		MemoryLimit: "1GB",
		Threads:     4,
		BatchSize:   50000,
	}
}

// DuckTrack stores PPK fixes in a temporary DuckDB file and answers bracket
// queries with indexed lookups. It is used for logs too large to keep as a
// sorted slice in memory.
type DuckTrack struct {
	db     *sql.DB
	dbPath string
	log    *log.Logger

	batchSize int
	batch     []models.PPKFix
	count     int
	first     time.Time
	last      time.Time
	finalized bool

	// Semaphore to limit concurrent queries
	querySem chan struct{}
}

// NewDuckTrack creates a DuckDB-backed track in the given temp directory.
func NewDuckTrack(tempDir, name string, opts DuckOptions) (*DuckTrack, error) {
	dbPath := filepath.Join(tempDir, fmt.Sprintf("track_%s.duckdb", name))
	return NewDuckTrackAtPath(dbPath, opts)
}

// NewDuckTrackAtPath creates a DuckDB-backed track at a specific path. Any
// stale file at that path is replaced.
func NewDuckTrackAtPath(dbPath string, opts DuckOptions) (*DuckTrack, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultDuckOptions().BatchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New("track")
		logger.SetLevel(log.OFF)
	}

	_ = os.Remove(dbPath)
	logger.Debugf("creating database at %s", dbPath)

	pragmas := []string{"PRAGMA enable_progress_bar=false"}
	if opts.MemoryLimit != "" {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit))
	}
	if opts.Threads > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA threads=%d", opts.Threads))
	}

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return fmt.Errorf("%s: %w", pragma, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	_, err = db.Exec(`
		CREATE TABLE fixes (
			seq       INTEGER NOT NULL,
			ts        BIGINT  NOT NULL,
			fix_date  VARCHAR NOT NULL,
			fix_time  VARCHAR NOT NULL,
			latitude  DOUBLE  NOT NULL,
			longitude DOUBLE  NOT NULL,
			altitude  DOUBLE  NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		os.Remove(dbPath)
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &DuckTrack{
		db:        db,
		dbPath:    dbPath,
		log:       logger,
		batchSize: opts.BatchSize,
		batch:     make([]models.PPKFix, 0, opts.BatchSize),
		querySem:  make(chan struct{}, 3),
	}, nil
}

// Add queues a fix for insertion. Fixes must be added in load order; the
// Seq field breaks ties between equal instants.
func (dt *DuckTrack) Add(fix models.PPKFix) error {
	if dt.finalized {
		return fmt.Errorf("track already finalized")
	}
	dt.batch = append(dt.batch, fix)
	if dt.count == 0 || fix.Instant.Before(dt.first) {
		dt.first = fix.Instant
	}
	if dt.count == 0 || fix.Instant.After(dt.last) {
		dt.last = fix.Instant
	}
	dt.count++

	if len(dt.batch) >= dt.batchSize {
		return dt.flushBatch()
	}
	return nil
}

// AddAll queues every fix and finalizes the track.
func (dt *DuckTrack) AddAll(fixes []models.PPKFix) error {
	for _, f := range fixes {
		if err := dt.Add(f); err != nil {
			return err
		}
	}
	return dt.Finalize()
}

// flushBatch writes the current batch using the native Appender API.
func (dt *DuckTrack) flushBatch() error {
	if len(dt.batch) == 0 {
		return nil
	}
	start := time.Now()

	conn, err := dt.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "fixes")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for i, f := range dt.batch {
			err := appender.AppendRow(
				int32(f.Seq),
				f.Instant.UnixNano(),
				f.Date,
				f.Time,
				f.Latitude,
				f.Longitude,
				f.Altitude,
			)
			if err != nil {
				return fmt.Errorf("failed to append row %d: %w", i, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}

	dt.log.Debugf("flushed %d fixes in %v", len(dt.batch), time.Since(start))
	dt.batch = dt.batch[:0]
	return nil
}

// Finalize flushes pending fixes and builds the timestamp index.
func (dt *DuckTrack) Finalize() error {
	if dt.finalized {
		return nil
	}
	if err := dt.flushBatch(); err != nil {
		return err
	}
	if _, err := dt.db.Exec("CREATE INDEX idx_fixes_ts ON fixes(ts, seq)"); err != nil {
		return fmt.Errorf("idx_fixes_ts creation failed: %w", err)
	}
	dt.finalized = true
	dt.log.Infof("indexed %d fixes", dt.count)
	return nil
}

// Len returns the number of fixes stored.
func (dt *DuckTrack) Len() int {
	return dt.count
}

// Span returns the earliest and latest fix instants.
func (dt *DuckTrack) Span() (first, last time.Time, ok bool) {
	if dt.count == 0 {
		return time.Time{}, time.Time{}, false
	}
	return dt.first, dt.last, true
}

// Bracket returns the latest fix at or before t and the earliest fix at or
// after t. Among fixes sharing an instant the first loaded wins.
func (dt *DuckTrack) Bracket(ctx context.Context, t time.Time) (before, after models.PPKFix, err error) {
	if !dt.finalized {
		return before, after, fmt.Errorf("track not finalized")
	}

	select {
	case dt.querySem <- struct{}{}:
		defer func() { <-dt.querySem }()
	case <-ctx.Done():
		return before, after, ctx.Err()
	}

	ns := t.UnixNano()
	before, okBefore, err := dt.queryOne(ctx, `
		SELECT seq, ts, fix_date, fix_time, latitude, longitude, altitude
		FROM fixes WHERE ts <= ? ORDER BY ts DESC, seq ASC LIMIT 1`, ns)
	if err != nil {
		return before, after, err
	}
	after, okAfter, err := dt.queryOne(ctx, `
		SELECT seq, ts, fix_date, fix_time, latitude, longitude, altitude
		FROM fixes WHERE ts >= ? ORDER BY ts ASC, seq ASC LIMIT 1`, ns)
	if err != nil {
		return before, after, err
	}

	if !okBefore || !okAfter {
		return before, after, fmt.Errorf("%w: %s", models.ErrNoBracketingFix, t.Format(time.RFC3339Nano))
	}
	return before, after, nil
}

func (dt *DuckTrack) queryOne(ctx context.Context, query string, args ...interface{}) (models.PPKFix, bool, error) {
	var f models.PPKFix
	var seq int32
	var ns int64
	err := dt.db.QueryRowContext(ctx, query, args...).Scan(&seq, &ns, &f.Date, &f.Time, &f.Latitude, &f.Longitude, &f.Altitude)
	if err == sql.ErrNoRows {
		return f, false, nil
	}
	if err != nil {
		return f, false, fmt.Errorf("bracket query: %w", err)
	}
	f.Seq = int(seq)
	f.Instant = time.Unix(0, ns).UTC()
	return f, true, nil
}

// Close closes the database and removes the temp file.
func (dt *DuckTrack) Close() error {
	if dt.db != nil {
		dt.db.Close()
		dt.db = nil
	}
	if dt.dbPath != "" {
		os.Remove(dt.dbPath)
		os.Remove(dt.dbPath + ".wal")
	}
	return nil
}
