package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/makerhunt/internal/db"
	"github.com/sells-group/makerhunt/internal/model"
	"github.com/sells-group/makerhunt/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS persons (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name             TEXT NOT NULL,
	headline         TEXT NOT NULL DEFAULT '',
	platform_id      TEXT NOT NULL DEFAULT '',
	twitter          TEXT NOT NULL DEFAULT '',
	github           TEXT NOT NULL DEFAULT '',
	linkedin         TEXT NOT NULL DEFAULT '',
	email            TEXT NOT NULL DEFAULT '',
	website          TEXT NOT NULL DEFAULT '',
	importance_score INTEGER NOT NULL DEFAULT 0,
	summary          TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_persons_platform_id ON persons(platform_id) WHERE platform_id <> '';
CREATE UNIQUE INDEX IF NOT EXISTS idx_persons_twitter ON persons(twitter) WHERE twitter <> '';
CREATE UNIQUE INDEX IF NOT EXISTS idx_persons_github ON persons(github) WHERE github <> '';
CREATE UNIQUE INDEX IF NOT EXISTS idx_persons_linkedin ON persons(linkedin) WHERE linkedin <> '';
CREATE INDEX IF NOT EXISTS idx_persons_score ON persons(importance_score DESC);

CREATE TABLE IF NOT EXISTS person_watermarks (
	person_id TEXT NOT NULL REFERENCES persons(id),
	channel   TEXT NOT NULL,
	watermark TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (person_id, channel)
);

CREATE TABLE IF NOT EXISTS crawl_state (
	source        TEXT PRIMARY KEY,
	oldest_seen   TIMESTAMPTZ,
	newest_seen   TIMESTAMPTZ,
	cursor        TEXT NOT NULL DEFAULT '',
	window_before TIMESTAMPTZ,
	status        TEXT NOT NULL DEFAULT 'active',
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS launches (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	tagline       TEXT NOT NULL DEFAULT '',
	slug          TEXT NOT NULL DEFAULT '',
	url           TEXT NOT NULL DEFAULT '',
	website       TEXT NOT NULL DEFAULT '',
	votes_count   INTEGER NOT NULL DEFAULT 0,
	review_rating DOUBLE PRECISION NOT NULL DEFAULT 0,
	review_count  INTEGER NOT NULL DEFAULT 0,
	topics        JSONB NOT NULL DEFAULT '[]',
	featured_at   TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL,
	fetched_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_launches_votes ON launches(votes_count DESC);

CREATE TABLE IF NOT EXISTS launch_people (
	person_id TEXT NOT NULL REFERENCES persons(id),
	launch_id TEXT NOT NULL REFERENCES launches(id),
	role      TEXT NOT NULL,
	PRIMARY KEY (person_id, launch_id, role)
);

CREATE TABLE IF NOT EXISTS tasks (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	person_id        TEXT NOT NULL REFERENCES persons(id),
	channel          TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending',
	priority         INTEGER NOT NULL DEFAULT 0,
	attempts         INTEGER NOT NULL DEFAULT 0,
	search_after     TIMESTAMPTZ,
	available_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	worker_id        TEXT NOT NULL DEFAULT '',
	lease_token      TEXT NOT NULL DEFAULT '',
	lease_expires_at TIMESTAMPTZ,
	last_error       TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_one_active
	ON tasks(person_id, channel) WHERE status IN ('pending', 'processing');
CREATE INDEX IF NOT EXISTS idx_tasks_claimable ON tasks(status, available_at, priority DESC, created_at);
CREATE INDEX IF NOT EXISTS idx_tasks_lease ON tasks(status, lease_expires_at);

CREATE TABLE IF NOT EXISTS fragments (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	person_id    TEXT NOT NULL REFERENCES persons(id),
	channel      TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	content      TEXT NOT NULL,
	url          TEXT NOT NULL DEFAULT '',
	query        TEXT NOT NULL DEFAULT '',
	content_ts   TIMESTAMPTZ,
	fetched_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (person_id, content_hash)
);

CREATE INDEX IF NOT EXISTS idx_fragments_person ON fragments(person_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// isPgUniqueViolation reports whether err is a unique_violation (23505).
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- persons ---

const pgPersonCols = `id, name, headline, platform_id, twitter, github, linkedin, email, website, importance_score, summary, created_at, updated_at`

func (s *PostgresStore) CreatePerson(ctx context.Context, p *model.Person) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO persons (`+pgPersonCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.Name, p.Headline, p.PlatformID, p.Twitter, p.GitHub, p.LinkedIn,
		p.Email, p.Website, p.ImportanceScore, p.Summary, p.CreatedAt, p.UpdatedAt,
	)
	if isPgUniqueViolation(err) {
		return eris.Wrap(ErrIdentityConflict, err.Error())
	}
	return eris.Wrap(err, "postgres: insert person")
}

func (s *PostgresStore) UpdatePerson(ctx context.Context, p *model.Person) error {
	p.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE persons SET name = $1, headline = $2, platform_id = $3, twitter = $4, github = $5,
		 linkedin = $6, email = $7, website = $8, importance_score = $9, summary = $10, updated_at = $11
		 WHERE id = $12`,
		p.Name, p.Headline, p.PlatformID, p.Twitter, p.GitHub, p.LinkedIn,
		p.Email, p.Website, p.ImportanceScore, p.Summary, p.UpdatedAt, p.ID,
	)
	if isPgUniqueViolation(err) {
		return eris.Wrap(ErrIdentityConflict, err.Error())
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: update person %s", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("person not found: %s", p.ID)
	}
	return nil
}

func (s *PostgresStore) GetPerson(ctx context.Context, id string) (*model.Person, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgPersonCols+` FROM persons WHERE id = $1`, id)
	p, err := scanPgPerson(row)
	if err != nil || p == nil {
		return p, err
	}
	if err := s.loadWatermarks(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) FindPersonByIdentity(ctx context.Context, sys model.IdentitySystem, key string) (*model.Person, error) {
	col, ok := identityColumn(sys)
	if !ok {
		return nil, eris.Errorf("postgres: unknown identity system %q", sys)
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgPersonCols+` FROM persons WHERE `+col+` = $1 AND `+col+` <> ''`, key)
	p, err := scanPgPerson(row)
	if err != nil || p == nil {
		return p, err
	}
	if err := s.loadWatermarks(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) ListPersons(ctx context.Context, filter PersonFilter) ([]model.Person, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgPersonCols+` FROM persons WHERE importance_score >= $1
		 ORDER BY importance_score DESC, created_at ASC LIMIT $2`,
		filter.MinScore, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list persons")
	}
	defer rows.Close()

	var persons []model.Person
	for rows.Next() {
		p, err := scanPgPerson(rows)
		if err != nil {
			return nil, err
		}
		persons = append(persons, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list persons iterate")
	}
	rows.Close()

	if err := s.loadWatermarksBatch(ctx, persons); err != nil {
		return nil, err
	}
	return persons, nil
}

func (s *PostgresStore) UpdateImportanceScore(ctx context.Context, personID string, score int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE persons SET importance_score = $1, updated_at = now() WHERE id = $2`,
		score, personID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update score %s", personID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("person not found: %s", personID)
	}
	return nil
}

func (s *PostgresStore) AdvanceWatermark(ctx context.Context, personID string, channel model.Channel, ts time.Time) error {
	if ts.IsZero() {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO person_watermarks (person_id, channel, watermark) VALUES ($1, $2, $3)
		 ON CONFLICT (person_id, channel) DO UPDATE SET watermark = EXCLUDED.watermark
		 WHERE EXCLUDED.watermark > person_watermarks.watermark`,
		personID, string(channel), ts.UTC(),
	)
	return eris.Wrapf(err, "postgres: advance watermark %s/%s", personID, channel)
}

func (s *PostgresStore) loadWatermarks(ctx context.Context, p *model.Person) error {
	rows, err := s.pool.Query(ctx,
		`SELECT channel, watermark FROM person_watermarks WHERE person_id = $1`, p.ID)
	if err != nil {
		return eris.Wrap(err, "postgres: load watermarks")
	}
	defer rows.Close()

	for rows.Next() {
		var channel string
		var wm time.Time
		if err := rows.Scan(&channel, &wm); err != nil {
			return eris.Wrap(err, "postgres: scan watermark")
		}
		if p.Watermarks == nil {
			p.Watermarks = make(map[model.Channel]time.Time)
		}
		p.Watermarks[model.Channel(channel)] = wm.UTC()
	}
	return eris.Wrap(rows.Err(), "postgres: iterate watermarks")
}

func (s *PostgresStore) loadWatermarksBatch(ctx context.Context, persons []model.Person) error {
	if len(persons) == 0 {
		return nil
	}
	byID := make(map[string]*model.Person, len(persons))
	ids := make([]string, len(persons))
	for i := range persons {
		byID[persons[i].ID] = &persons[i]
		ids[i] = persons[i].ID
	}
	rows, err := s.pool.Query(ctx,
		`SELECT person_id, channel, watermark FROM person_watermarks WHERE person_id = ANY($1)`, ids)
	if err != nil {
		return eris.Wrap(err, "postgres: load watermarks")
	}
	defer rows.Close()

	for rows.Next() {
		var personID, channel string
		var wm time.Time
		if err := rows.Scan(&personID, &channel, &wm); err != nil {
			return eris.Wrap(err, "postgres: scan watermark")
		}
		p := byID[personID]
		if p == nil {
			continue
		}
		if p.Watermarks == nil {
			p.Watermarks = make(map[model.Channel]time.Time)
		}
		p.Watermarks[model.Channel(channel)] = wm.UTC()
	}
	return eris.Wrap(rows.Err(), "postgres: iterate watermarks")
}

// --- crawl state ---

func (s *PostgresStore) GetCrawlState(ctx context.Context, source string) (*model.CrawlState, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT source, oldest_seen, newest_seen, cursor, window_before, status, updated_at
		 FROM crawl_state WHERE source = $1`, source)

	var cs model.CrawlState
	var oldest, newest, windowBefore *time.Time
	err := row.Scan(&cs.Source, &oldest, &newest, &cs.Cursor, &windowBefore, &cs.Status, &cs.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan crawl state")
	}
	if oldest != nil {
		cs.OldestSeen = oldest.UTC()
	}
	if newest != nil {
		cs.NewestSeen = newest.UTC()
	}
	if windowBefore != nil {
		cs.WindowBefore = windowBefore.UTC()
	}
	return &cs, nil
}

func (s *PostgresStore) InitCrawlState(ctx context.Context, source string) (*model.CrawlState, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO crawl_state (source, cursor, status, updated_at) VALUES ($1, '', 'active', now())
		 ON CONFLICT (source) DO NOTHING`,
		source,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: init crawl state %s", source)
	}
	return s.GetCrawlState(ctx, source)
}

var launchColumns = []string{
	"id", "name", "tagline", "slug", "url", "website",
	"votes_count", "review_rating", "review_count", "topics",
	"featured_at", "created_at", "fetched_at",
}

func (s *PostgresStore) CommitCrawlPage(ctx context.Context, state model.CrawlState, launches []model.Launch, assocs []model.LaunchAssociation) error {
	now := time.Now().UTC()

	// Launch rows go through the bulk upsert path. It runs in its own
	// transaction ahead of the cursor write; re-running after a crash
	// between the two upserts the same rows again, which is harmless.
	rows := make([][]any, 0, len(launches))
	for _, l := range launches {
		var featured any
		if !l.FeaturedAt.IsZero() {
			featured = l.FeaturedAt.UTC()
		}
		topics, err := json.Marshal(l.Topics)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal topics")
		}
		if l.Topics == nil {
			topics = []byte("[]")
		}
		rows = append(rows, []any{
			l.ID, l.Name, l.Tagline, l.Slug, l.URL, l.Website,
			l.VotesCount, l.ReviewRating, l.ReviewCount, topics,
			featured, l.CreatedAt.UTC(), now,
		})
	}
	if _, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "launches",
		Columns:      launchColumns,
		ConflictKeys: []string{"id"},
	}, rows); err != nil {
		return eris.Wrap(err, "postgres: upsert launches")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin commit page")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, a := range assocs {
		_, err := tx.Exec(ctx,
			`INSERT INTO launch_people (person_id, launch_id, role) VALUES ($1, $2, $3)
			 ON CONFLICT (person_id, launch_id, role) DO NOTHING`,
			a.PersonID, a.LaunchID, a.Role,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: link person %s launch %s", a.PersonID, a.LaunchID)
		}
	}

	var oldest, newest, windowBefore any
	if !state.OldestSeen.IsZero() {
		oldest = state.OldestSeen.UTC()
	}
	if !state.NewestSeen.IsZero() {
		newest = state.NewestSeen.UTC()
	}
	if !state.WindowBefore.IsZero() {
		windowBefore = state.WindowBefore.UTC()
	}
	_, err = tx.Exec(ctx,
		`UPDATE crawl_state SET oldest_seen = $1, newest_seen = $2, cursor = $3, window_before = $4, status = $5, updated_at = now()
		 WHERE source = $6`,
		oldest, newest, state.Cursor, windowBefore, string(state.Status), state.Source,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: advance crawl state %s", state.Source)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit page")
}

func (s *PostgresStore) SetCrawlStatus(ctx context.Context, source string, status model.CrawlStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE crawl_state SET status = $1, updated_at = now() WHERE source = $2`,
		string(status), source,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set crawl status %s", source)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("crawl state not found: %s", source)
	}
	return nil
}

// --- task queue ---

const pgTaskCols = `id, person_id, channel, status, priority, attempts, search_after, available_at, lease_token, lease_expires_at, last_error, created_at, updated_at`

func (s *PostgresStore) EnqueueTask(ctx context.Context, t *model.Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	t.Status = model.TaskPending
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.AvailableAt.IsZero() {
		t.AvailableAt = now
	}

	var searchAfter any
	if !t.SearchAfter.IsZero() {
		searchAfter = t.SearchAfter.UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tasks (id, person_id, channel, status, priority, attempts, search_after, available_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, $9)`,
		t.ID, t.PersonID, string(t.Channel), string(t.Status), t.Priority,
		searchAfter, t.AvailableAt.UTC(), t.CreatedAt, t.UpdatedAt,
	)
	if isPgUniqueViolation(err) {
		return resilience.ErrDuplicateActiveTask
	}
	return eris.Wrap(err, "postgres: enqueue task")
}

func (s *PostgresStore) ClaimTask(ctx context.Context, workerID string, leaseDuration time.Duration) (*model.Task, error) {
	now := time.Now().UTC()
	token := uuid.New().String()

	row := s.pool.QueryRow(ctx,
		`UPDATE tasks
		 SET status = 'processing', worker_id = $1, lease_token = $2, lease_expires_at = $3, updated_at = now()
		 WHERE id = (
			SELECT id FROM tasks
			WHERE status = 'pending' AND available_at <= now()
			ORDER BY priority DESC, created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+pgTaskCols,
		workerID, token, now.Add(leaseDuration),
	)
	return scanPgTask(row)
}

func (s *PostgresStore) CompleteTask(ctx context.Context, taskID, leaseToken string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks SET status = 'completed', last_error = '', updated_at = now()
		 WHERE id = $1 AND status = 'processing' AND lease_token = $2`,
		taskID, leaseToken,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete task %s", taskID)
	}
	if tag.RowsAffected() == 0 {
		return resilience.ErrLeaseLost
	}
	return nil
}

func (s *PostgresStore) TransitionTask(ctx context.Context, taskID, leaseToken string, to model.TaskStatus, errMsg string, availableAt time.Time, countAttempt bool) error {
	inc := 0
	if countAttempt {
		inc = 1
	}
	if availableAt.IsZero() {
		availableAt = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks
		 SET status = $1, attempts = attempts + $2, last_error = $3, available_at = $4,
		     lease_token = '', lease_expires_at = NULL, updated_at = now()
		 WHERE id = $5 AND status = 'processing' AND lease_token = $6`,
		string(to), inc, errMsg, availableAt.UTC(), taskID, leaseToken,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: transition task %s", taskID)
	}
	if tag.RowsAffected() == 0 {
		return resilience.ErrLeaseLost
	}
	return nil
}

func (s *PostgresStore) ReclaimExpiredTasks(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks
		 SET status = 'pending', lease_token = '', lease_expires_at = NULL, worker_id = '', updated_at = now()
		 WHERE status = 'processing' AND lease_expires_at IS NOT NULL AND lease_expires_at <= $1`,
		now.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: reclaim expired tasks")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgTaskCols+` FROM tasks WHERE id = $1`, taskID)
	return scanPgTask(row)
}

func (s *PostgresStore) QueueStats(ctx context.Context) (*model.QueueStats, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: queue stats")
	}
	defer rows.Close()

	stats := &model.QueueStats{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan queue stats")
		}
		applyStat(stats, model.TaskStatus(status), n)
	}
	return stats, eris.Wrap(rows.Err(), "postgres: iterate queue stats")
}

// --- fragments ---

func (s *PostgresStore) InsertFragment(ctx context.Context, f *model.Fragment) (bool, error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.FetchedAt.IsZero() {
		f.FetchedAt = time.Now().UTC()
	}
	var contentTS any
	if !f.ContentTS.IsZero() {
		contentTS = f.ContentTS.UTC()
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO fragments (id, person_id, channel, content_hash, title, content, url, query, content_ts, fetched_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (person_id, content_hash) DO NOTHING`,
		f.ID, f.PersonID, string(f.Channel), f.ContentHash, f.Title, f.Content,
		f.URL, f.Query, contentTS, f.FetchedAt.UTC(),
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: insert fragment")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) CountFragments(ctx context.Context, personID string) (int, error) {
	var n int
	var err error
	if personID == "" {
		err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM fragments`).Scan(&n)
	} else {
		err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM fragments WHERE person_id = $1`, personID).Scan(&n)
	}
	return n, eris.Wrap(err, "postgres: count fragments")
}

// --- aggregates ---

func (s *PostgresStore) PersonLaunchStats(ctx context.Context, personID string) (*LaunchStats, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT COUNT(l.id), COALESCE(SUM(l.votes_count), 0), MAX(l.created_at)
		 FROM launch_people lp
		 JOIN launches l ON lp.launch_id = l.id
		 WHERE lp.person_id = $1 AND lp.role = 'maker'`,
		personID,
	)
	var stats LaunchStats
	var last *time.Time
	if err := row.Scan(&stats.LaunchCount, &stats.TotalVotes, &last); err != nil {
		return nil, eris.Wrapf(err, "postgres: launch stats %s", personID)
	}
	if last != nil {
		stats.LastLaunch = last.UTC()
	}
	return &stats, nil
}

func (s *PostgresStore) CountLaunches(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM launches`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count launches")
}

func (s *PostgresStore) CountPersons(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM persons`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count persons")
}

// --- scan helpers ---

func scanPgPerson(row pgx.Row) (*model.Person, error) {
	var p model.Person
	err := row.Scan(&p.ID, &p.Name, &p.Headline, &p.PlatformID, &p.Twitter,
		&p.GitHub, &p.LinkedIn, &p.Email, &p.Website, &p.ImportanceScore,
		&p.Summary, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan person")
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func scanPgTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	var searchAfter, leaseExpires *time.Time
	err := row.Scan(&t.ID, &t.PersonID, &t.Channel, &t.Status, &t.Priority,
		&t.Attempts, &searchAfter, &t.AvailableAt, &t.LeaseToken, &leaseExpires,
		&t.LastError, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan task")
	}
	if searchAfter != nil {
		t.SearchAfter = searchAfter.UTC()
	}
	if leaseExpires != nil {
		t.LeaseExpiresAt = leaseExpires.UTC()
	}
	t.AvailableAt = t.AvailableAt.UTC()
	return &t, nil
}
