package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"remindbot/pkg/logx"
)

//go:embed schema.sql
var schemaSQL string

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Backend, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(ctx context.Context) (*Document, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}

	var version string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'version'`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, err
	}

	doc := NewDocument()
	doc.Version, _ = strconv.Atoi(version)

	rows, err := s.db.QueryContext(ctx,
		`SELECT destination, id, time_spec, content, countdown_days, start_date, target, images
		 FROM tasks ORDER BY destination, position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			dest      string
			rec       Record
			countdown sql.NullInt64
			startDate sql.NullString
			target    sql.NullString
			images    string
		)
		if err := rows.Scan(&dest, &rec.ID, &rec.Time, &rec.Content, &countdown, &startDate, &target, &images); err != nil {
			return nil, err
		}
		if countdown.Valid {
			n := int(countdown.Int64)
			rec.CountdownDays = &n
		}
		if startDate.Valid {
			v := startDate.String
			rec.StartDate = &v
		}
		if target.Valid {
			v := target.String
			rec.Target = &v
		}
		if images != "" {
			if err := json.Unmarshal([]byte(images), &rec.Images); err != nil {
				return nil, fmt.Errorf("task %s#%d images: %w", dest, rec.ID, err)
			}
		}
		doc.Tasks[dest] = append(doc.Tasks[dest], rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	crow, err := s.db.QueryContext(ctx, `SELECT destination, next_id FROM counters`)
	if err != nil {
		return nil, err
	}
	defer crow.Close()
	for crow.Next() {
		var dest string
		var next int
		if err := crow.Scan(&dest, &next); err != nil {
			return nil, err
		}
		doc.NextIDs[dest] = next
	}
	return doc, crow.Err()
}

func (s *sqliteStore) Save(ctx context.Context, doc *Document) (err error) {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if doc == nil {
		doc = NewDocument()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM counters`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tasks(destination, position, id, time_spec, content, countdown_days, start_date, target, images)
		 VALUES(?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for dest, recs := range doc.Tasks {
		for pos, rec := range recs {
			images := rec.Images
			if images == nil {
				images = []string{}
			}
			var b []byte
			b, err = json.Marshal(images)
			if err != nil {
				return err
			}
			if _, err = stmt.ExecContext(ctx,
				dest, pos, rec.ID, rec.Time, rec.Content,
				nullInt(rec.CountdownDays), nullStr(rec.StartDate), nullStr(rec.Target), string(b),
			); err != nil {
				return err
			}
		}
	}
	for dest, next := range doc.NextIDs {
		if _, err = tx.ExecContext(ctx, `INSERT INTO counters(destination, next_id) VALUES(?,?)`, dest, next); err != nil {
			return err
		}
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO meta(key, value) VALUES('version', ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		strconv.Itoa(DocumentVersion),
	); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	s.log.Debug("document saved", logx.Int("tasks", doc.Count()))
	return nil
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullStr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
