package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/roster-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB

	// nowFunc allows test injection of time for TTL checks.
	nowFunc func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, nowFunc: time.Now}, nil
}

// WithNow sets a fixed clock for testing TTL behavior.
func (s *SQLiteStore) WithNow(fn func() time.Time) *SQLiteStore {
	s.nowFunc = fn
	return s
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS site_patterns (
	org_key       TEXT NOT NULL,
	dept_key      TEXT NOT NULL DEFAULT '',
	pattern       TEXT NOT NULL,
	discovered_at DATETIME NOT NULL,
	expires_at    DATETIME NOT NULL,
	PRIMARY KEY (org_key, dept_key)
);

CREATE TABLE IF NOT EXISTS external_cache (
	key        TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	payload    TEXT NOT NULL,
	result     TEXT NOT NULL,
	cost_usd   REAL NOT NULL DEFAULT 0,
	cached_at  DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	organization TEXT NOT NULL,
	department   TEXT NOT NULL DEFAULT '',
	stats        TEXT NOT NULL,
	created_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_external_cache_expires_at ON external_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_runs_org ON runs(organization, department);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetPattern(ctx context.Context, orgKey, deptKey string) (*model.SitePattern, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT pattern, expires_at FROM site_patterns WHERE org_key = ? AND dept_key = ?`,
		orgKey, deptKey,
	)

	var patternJSON string
	var expiresAt time.Time
	err := row.Scan(&patternJSON, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get pattern")
	}

	// Lazy eviction: an expired row reads as a miss but stays in place
	// until the next overwrite.
	if !s.nowFunc().Before(expiresAt) {
		return nil, nil
	}

	var p model.SitePattern
	if err := json.Unmarshal([]byte(patternJSON), &p); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal pattern")
	}
	return &p, nil
}

func (s *SQLiteStore) PutPattern(ctx context.Context, orgKey, deptKey string, p *model.SitePattern) error {
	patternJSON, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal pattern")
	}

	ttl := p.TTL
	if ttl <= 0 {
		ttl = model.DefaultPatternTTL
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO site_patterns (org_key, dept_key, pattern, discovered_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (org_key, dept_key) DO UPDATE SET
		   pattern = excluded.pattern,
		   discovered_at = excluded.discovered_at,
		   expires_at = excluded.expires_at`,
		orgKey, deptKey, string(patternJSON), p.DiscoveredAt.UTC(), p.DiscoveredAt.Add(ttl).UTC(),
	)
	return eris.Wrap(err, "sqlite: put pattern")
}

func (s *SQLiteStore) InvalidatePattern(ctx context.Context, orgKey, deptKey string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM site_patterns WHERE org_key = ? AND dept_key = ?`,
		orgKey, deptKey,
	)
	return eris.Wrap(err, "sqlite: invalidate pattern")
}

func (s *SQLiteStore) GetExternal(ctx context.Context, key string) (*ExternalCacheEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, kind, payload, result, cost_usd, cached_at, expires_at
		 FROM external_cache WHERE key = ?`,
		key,
	)

	var e ExternalCacheEntry
	var result string
	err := row.Scan(&e.Key, &e.Kind, &e.Payload, &result, &e.CostUSD, &e.CachedAt, &e.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get external entry")
	}

	if !s.nowFunc().Before(e.ExpiresAt) {
		return nil, nil
	}

	e.Result = []byte(result)
	return &e, nil
}

func (s *SQLiteStore) PutExternal(ctx context.Context, entry *ExternalCacheEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO external_cache (key, kind, payload, result, cost_usd, cached_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET
		   result = excluded.result,
		   cost_usd = excluded.cost_usd,
		   cached_at = excluded.cached_at,
		   expires_at = excluded.expires_at`,
		entry.Key, entry.Kind, entry.Payload, string(entry.Result),
		entry.CostUSD, entry.CachedAt.UTC(), entry.ExpiresAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: put external entry")
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *RunRecord) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.nowFunc().UTC()
	}

	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run stats")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, organization, department, stats, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Organization, run.Department, string(statsJSON), run.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: save run")
}

func (s *SQLiteStore) LastRun(ctx context.Context, organization, department string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, organization, department, stats, created_at FROM runs
		 WHERE organization = ? AND department = ?
		 ORDER BY created_at DESC LIMIT 1`,
		organization, department,
	)

	var r RunRecord
	var statsJSON string
	err := row.Scan(&r.ID, &r.Organization, &r.Department, &statsJSON, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: last run")
	}
	if err := json.Unmarshal([]byte(statsJSON), &r.Stats); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal run stats")
	}
	return &r, nil
}
