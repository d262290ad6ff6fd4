package catalog

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"

	logx "github.com/bareos/bareos-sub019/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
	loc *time.Location
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("catalog.path is required for sqlite driver")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create catalog dir")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog")
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := newSQLiteStore(db, log, cfg.Location)
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "migrate catalog")
	}
	log.Info("catalog opened", logx.String("path", path))
	return st, nil
}

func newSQLiteStore(db *sql.DB, log logx.Logger, loc *time.Location) *sqliteStore {
	if loc == nil {
		loc = time.Local
	}
	return &sqliteStore{db: db, log: log, loc: loc}
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) FindLastJobStartTime(ctx context.Context, job, client string) (string, error) {
	if s == nil || s.db == nil {
		return "", ErrClosed
	}
	var start string
	err := s.db.QueryRowContext(ctx,
		`SELECT starttime FROM job WHERE name = ? AND client = ? ORDER BY starttime DESC LIMIT 1`,
		job, client,
	).Scan(&start)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrEmptyResultSet
	}
	if err != nil {
		return "", errors.Wrapf(err, "last start of %s on %s", job, client)
	}
	return start, nil
}

func (s *sqliteStore) RecordJobStart(ctx context.Context, rec JobRecord) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if rec.StartTime.IsZero() {
		rec.StartTime = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job(jobid, name, client, level, reason, schedtime, starttime, jobstatus)
		 VALUES(?,?,?,?,?,?,?,?)`,
		rec.ID, rec.Job, rec.Client, rec.Level, rec.Reason,
		nullStr(formatTime(rec.SchedTime, s.loc)), formatTime(rec.StartTime, s.loc), string(JobStatusRunning),
	)
	return errors.Wrapf(err, "record start of %s", rec.Job)
}

func (s *sqliteStore) RecordJobEnd(ctx context.Context, id string, end time.Time, status JobStatus, errMsg string) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if end.IsZero() {
		end = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE job SET endtime = ?, jobstatus = ?, errmsg = ? WHERE jobid = ?`,
		formatTime(end, s.loc), string(status), nullStr(errMsg), id,
	)
	if err != nil {
		return errors.Wrapf(err, "record end of %s", id)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.log.Warn("job end recorded for unknown run", logx.String("jobid", id))
	}
	return nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
