package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/makerhunt/internal/model"
	"github.com/sells-group/makerhunt/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
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
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	// Claim atomicity relies on the database-level write lock; a single
	// connection also avoids SQLITE_BUSY churn under worker concurrency.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS persons (
	id               TEXT PRIMARY KEY,
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
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_persons_platform_id ON persons(platform_id) WHERE platform_id <> '';
CREATE UNIQUE INDEX IF NOT EXISTS idx_persons_twitter ON persons(twitter) WHERE twitter <> '';
CREATE UNIQUE INDEX IF NOT EXISTS idx_persons_github ON persons(github) WHERE github <> '';
CREATE UNIQUE INDEX IF NOT EXISTS idx_persons_linkedin ON persons(linkedin) WHERE linkedin <> '';
CREATE INDEX IF NOT EXISTS idx_persons_score ON persons(importance_score DESC);

CREATE TABLE IF NOT EXISTS person_watermarks (
	person_id TEXT NOT NULL REFERENCES persons(id),
	channel   TEXT NOT NULL,
	watermark DATETIME NOT NULL,
	PRIMARY KEY (person_id, channel)
);

CREATE TABLE IF NOT EXISTS crawl_state (
	source        TEXT PRIMARY KEY,
	oldest_seen   DATETIME,
	newest_seen   DATETIME,
	cursor        TEXT NOT NULL DEFAULT '',
	window_before DATETIME,
	status        TEXT NOT NULL DEFAULT 'active',
	updated_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS launches (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	tagline       TEXT NOT NULL DEFAULT '',
	slug          TEXT NOT NULL DEFAULT '',
	url           TEXT NOT NULL DEFAULT '',
	website       TEXT NOT NULL DEFAULT '',
	votes_count   INTEGER NOT NULL DEFAULT 0,
	review_rating REAL NOT NULL DEFAULT 0,
	review_count  INTEGER NOT NULL DEFAULT 0,
	topics        TEXT NOT NULL DEFAULT '[]',
	featured_at   DATETIME,
	created_at    DATETIME NOT NULL,
	fetched_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_launches_votes ON launches(votes_count DESC);

CREATE TABLE IF NOT EXISTS launch_people (
	person_id TEXT NOT NULL REFERENCES persons(id),
	launch_id TEXT NOT NULL REFERENCES launches(id),
	role      TEXT NOT NULL,
	PRIMARY KEY (person_id, launch_id, role)
);

CREATE TABLE IF NOT EXISTS tasks (
	id               TEXT PRIMARY KEY,
	person_id        TEXT NOT NULL REFERENCES persons(id),
	channel          TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending',
	priority         INTEGER NOT NULL DEFAULT 0,
	attempts         INTEGER NOT NULL DEFAULT 0,
	search_after     DATETIME,
	available_at     DATETIME NOT NULL,
	worker_id        TEXT NOT NULL DEFAULT '',
	lease_token      TEXT NOT NULL DEFAULT '',
	lease_expires_at DATETIME,
	last_error       TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_one_active
	ON tasks(person_id, channel) WHERE status IN ('pending', 'processing');
CREATE INDEX IF NOT EXISTS idx_tasks_claimable ON tasks(status, available_at, priority DESC, created_at);
CREATE INDEX IF NOT EXISTS idx_tasks_lease ON tasks(status, lease_expires_at);

CREATE TABLE IF NOT EXISTS fragments (
	id           TEXT PRIMARY KEY,
	person_id    TEXT NOT NULL REFERENCES persons(id),
	channel      TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	content      TEXT NOT NULL,
	url          TEXT NOT NULL DEFAULT '',
	query        TEXT NOT NULL DEFAULT '',
	content_ts   DATETIME,
	fetched_at   DATETIME NOT NULL,
	UNIQUE (person_id, content_hash)
);

CREATE INDEX IF NOT EXISTS idx_fragments_person ON fragments(person_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isSQLiteUniqueViolation reports whether err is a UNIQUE index violation.
func isSQLiteUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// --- persons ---

const sqlitePersonCols = `id, name, headline, platform_id, twitter, github, linkedin, email, website, importance_score, summary, created_at, updated_at`

func (s *SQLiteStore) CreatePerson(ctx context.Context, p *model.Person) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO persons (`+sqlitePersonCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Headline, p.PlatformID, p.Twitter, p.GitHub, p.LinkedIn,
		p.Email, p.Website, p.ImportanceScore, p.Summary, p.CreatedAt, p.UpdatedAt,
	)
	if isSQLiteUniqueViolation(err) {
		return eris.Wrap(ErrIdentityConflict, err.Error())
	}
	return eris.Wrap(err, "sqlite: insert person")
}

func (s *SQLiteStore) UpdatePerson(ctx context.Context, p *model.Person) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE persons SET name = ?, headline = ?, platform_id = ?, twitter = ?, github = ?,
		 linkedin = ?, email = ?, website = ?, importance_score = ?, summary = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name, p.Headline, p.PlatformID, p.Twitter, p.GitHub, p.LinkedIn,
		p.Email, p.Website, p.ImportanceScore, p.Summary, p.UpdatedAt, p.ID,
	)
	if isSQLiteUniqueViolation(err) {
		return eris.Wrap(ErrIdentityConflict, err.Error())
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: update person %s", p.ID)
	}
	return checkRowsAffected(res, "person", p.ID)
}

func (s *SQLiteStore) GetPerson(ctx context.Context, id string) (*model.Person, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqlitePersonCols+` FROM persons WHERE id = ?`, id)
	p, err := scanPerson(row)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	if err := s.loadWatermarks(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLiteStore) FindPersonByIdentity(ctx context.Context, sys model.IdentitySystem, key string) (*model.Person, error) {
	col, ok := identityColumn(sys)
	if !ok {
		return nil, eris.Errorf("sqlite: unknown identity system %q", sys)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqlitePersonCols+` FROM persons WHERE `+col+` = ? AND `+col+` <> ''`, key)
	p, err := scanPerson(row)
	if err != nil || p == nil {
		return p, err
	}
	if err := s.loadWatermarks(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLiteStore) ListPersons(ctx context.Context, filter PersonFilter) ([]model.Person, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqlitePersonCols+` FROM persons WHERE importance_score >= ?
		 ORDER BY importance_score DESC, created_at ASC LIMIT ?`,
		filter.MinScore, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list persons")
	}
	defer rows.Close()

	var persons []model.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		persons = append(persons, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list persons iterate")
	}
	// The single connection must be free before the watermark query runs.
	if err := rows.Close(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list persons close")
	}
	if err := s.loadWatermarksBatch(ctx, persons); err != nil {
		return nil, err
	}
	return persons, nil
}

func (s *SQLiteStore) UpdateImportanceScore(ctx context.Context, personID string, score int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE persons SET importance_score = ?, updated_at = ? WHERE id = ?`,
		score, time.Now().UTC(), personID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update score %s", personID)
	}
	return checkRowsAffected(res, "person", personID)
}

func (s *SQLiteStore) AdvanceWatermark(ctx context.Context, personID string, channel model.Channel, ts time.Time) error {
	if ts.IsZero() {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO person_watermarks (person_id, channel, watermark) VALUES (?, ?, ?)
		 ON CONFLICT (person_id, channel) DO UPDATE SET watermark = excluded.watermark
		 WHERE excluded.watermark > person_watermarks.watermark`,
		personID, string(channel), ts.UTC(),
	)
	return eris.Wrapf(err, "sqlite: advance watermark %s/%s", personID, channel)
}

func (s *SQLiteStore) loadWatermarks(ctx context.Context, p *model.Person) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel, watermark FROM person_watermarks WHERE person_id = ?`, p.ID)
	if err != nil {
		return eris.Wrap(err, "sqlite: load watermarks")
	}
	defer rows.Close()

	for rows.Next() {
		var channel string
		var wm time.Time
		if err := rows.Scan(&channel, &wm); err != nil {
			return eris.Wrap(err, "sqlite: scan watermark")
		}
		if p.Watermarks == nil {
			p.Watermarks = make(map[model.Channel]time.Time)
		}
		p.Watermarks[model.Channel(channel)] = wm.UTC()
	}
	return eris.Wrap(rows.Err(), "sqlite: iterate watermarks")
}

func (s *SQLiteStore) loadWatermarksBatch(ctx context.Context, persons []model.Person) error {
	if len(persons) == 0 {
		return nil
	}
	byID := make(map[string]*model.Person, len(persons))
	placeholders := make([]string, len(persons))
	args := make([]any, len(persons))
	for i := range persons {
		byID[persons[i].ID] = &persons[i]
		placeholders[i] = "?"
		args[i] = persons[i].ID
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT person_id, channel, watermark FROM person_watermarks
		 WHERE person_id IN (`+strings.Join(placeholders, ", ")+`)`, args...)
	if err != nil {
		return eris.Wrap(err, "sqlite: load watermarks")
	}
	defer rows.Close()

	for rows.Next() {
		var personID, channel string
		var wm time.Time
		if err := rows.Scan(&personID, &channel, &wm); err != nil {
			return eris.Wrap(err, "sqlite: scan watermark")
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
	return eris.Wrap(rows.Err(), "sqlite: iterate watermarks")
}

// --- crawl state ---

func (s *SQLiteStore) GetCrawlState(ctx context.Context, source string) (*model.CrawlState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT source, oldest_seen, newest_seen, cursor, window_before, status, updated_at
		 FROM crawl_state WHERE source = ?`, source)
	return scanCrawlState(row)
}

func (s *SQLiteStore) InitCrawlState(ctx context.Context, source string) (*model.CrawlState, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO crawl_state (source, cursor, status, updated_at) VALUES (?, '', 'active', ?)
		 ON CONFLICT (source) DO NOTHING`,
		source, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: init crawl state %s", source)
	}
	return s.GetCrawlState(ctx, source)
}

func (s *SQLiteStore) CommitCrawlPage(ctx context.Context, state model.CrawlState, launches []model.Launch, assocs []model.LaunchAssociation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin commit page")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, l := range launches {
		topics, err := json.Marshal(l.Topics)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal topics")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO launches (id, name, tagline, slug, url, website, votes_count, review_rating, review_count, topics, featured_at, created_at, fetched_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				tagline = excluded.tagline,
				votes_count = excluded.votes_count,
				review_rating = excluded.review_rating,
				review_count = excluded.review_count,
				topics = excluded.topics,
				fetched_at = excluded.fetched_at`,
			l.ID, l.Name, l.Tagline, l.Slug, l.URL, l.Website, l.VotesCount,
			l.ReviewRating, l.ReviewCount, string(topics), nullTime(l.FeaturedAt), l.CreatedAt.UTC(), now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert launch %s", l.ID)
		}
	}

	for _, a := range assocs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO launch_people (person_id, launch_id, role) VALUES (?, ?, ?)
			 ON CONFLICT (person_id, launch_id, role) DO NOTHING`,
			a.PersonID, a.LaunchID, a.Role,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: link person %s launch %s", a.PersonID, a.LaunchID)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE crawl_state SET oldest_seen = ?, newest_seen = ?, cursor = ?, window_before = ?, status = ?, updated_at = ?
		 WHERE source = ?`,
		nullTime(state.OldestSeen), nullTime(state.NewestSeen), state.Cursor,
		nullTime(state.WindowBefore), string(state.Status), now, state.Source,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: advance crawl state %s", state.Source)
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit page")
}

func (s *SQLiteStore) SetCrawlStatus(ctx context.Context, source string, status model.CrawlStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE crawl_state SET status = ?, updated_at = ? WHERE source = ?`,
		string(status), time.Now().UTC(), source,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set crawl status %s", source)
	}
	return checkRowsAffected(res, "crawl state", source)
}

// --- task queue ---

const sqliteTaskCols = `id, person_id, channel, status, priority, attempts, search_after, available_at, lease_token, lease_expires_at, last_error, created_at, updated_at`

func (s *SQLiteStore) EnqueueTask(ctx context.Context, t *model.Task) error {
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

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, person_id, channel, status, priority, attempts, search_after, available_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		t.ID, t.PersonID, string(t.Channel), string(t.Status), t.Priority,
		nullTime(t.SearchAfter), t.AvailableAt.UTC(), t.CreatedAt, t.UpdatedAt,
	)
	if isSQLiteUniqueViolation(err) {
		return resilience.ErrDuplicateActiveTask
	}
	return eris.Wrap(err, "sqlite: enqueue task")
}

func (s *SQLiteStore) ClaimTask(ctx context.Context, workerID string, leaseDuration time.Duration) (*model.Task, error) {
	now := time.Now().UTC()
	token := uuid.New().String()

	// Single-statement claim: the database write lock makes the
	// select-and-update atomic, so two workers never get the same task.
	row := s.db.QueryRowContext(ctx,
		`UPDATE tasks
		 SET status = 'processing', worker_id = ?, lease_token = ?, lease_expires_at = ?, updated_at = ?
		 WHERE id = (
			SELECT id FROM tasks
			WHERE status = 'pending' AND available_at <= ?
			ORDER BY priority DESC, created_at ASC
			LIMIT 1
		 )
		 RETURNING `+sqliteTaskCols,
		workerID, token, now.Add(leaseDuration), now, now,
	)

	t, err := scanTask(row)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLiteStore) CompleteTask(ctx context.Context, taskID, leaseToken string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = 'completed', last_error = '', updated_at = ?
		 WHERE id = ? AND status = 'processing' AND lease_token = ?`,
		time.Now().UTC(), taskID, leaseToken,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete task %s", taskID)
	}
	return checkLease(res)
}

func (s *SQLiteStore) TransitionTask(ctx context.Context, taskID, leaseToken string, to model.TaskStatus, errMsg string, availableAt time.Time, countAttempt bool) error {
	inc := 0
	if countAttempt {
		inc = 1
	}
	if availableAt.IsZero() {
		availableAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks
		 SET status = ?, attempts = attempts + ?, last_error = ?, available_at = ?,
		     lease_token = '', lease_expires_at = NULL, updated_at = ?
		 WHERE id = ? AND status = 'processing' AND lease_token = ?`,
		string(to), inc, errMsg, availableAt.UTC(), time.Now().UTC(), taskID, leaseToken,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: transition task %s", taskID)
	}
	return checkLease(res)
}

func (s *SQLiteStore) ReclaimExpiredTasks(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks
		 SET status = 'pending', lease_token = '', lease_expires_at = NULL, worker_id = '', updated_at = ?
		 WHERE status = 'processing' AND lease_expires_at IS NOT NULL AND lease_expires_at <= ?`,
		now.UTC(), now.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: reclaim expired tasks")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: reclaim rows affected")
}

func (s *SQLiteStore) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteTaskCols+` FROM tasks WHERE id = ?`, taskID)
	return scanTask(row)
}

func (s *SQLiteStore) QueueStats(ctx context.Context) (*model.QueueStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: queue stats")
	}
	defer rows.Close()

	stats := &model.QueueStats{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan queue stats")
		}
		applyStat(stats, model.TaskStatus(status), n)
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: iterate queue stats")
}

// --- fragments ---

func (s *SQLiteStore) InsertFragment(ctx context.Context, f *model.Fragment) (bool, error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.FetchedAt.IsZero() {
		f.FetchedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO fragments (id, person_id, channel, content_hash, title, content, url, query, content_ts, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (person_id, content_hash) DO NOTHING`,
		f.ID, f.PersonID, string(f.Channel), f.ContentHash, f.Title, f.Content,
		f.URL, f.Query, nullTime(f.ContentTS), f.FetchedAt.UTC(),
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: insert fragment")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: fragment rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) CountFragments(ctx context.Context, personID string) (int, error) {
	var n int
	var err error
	if personID == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fragments`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fragments WHERE person_id = ?`, personID).Scan(&n)
	}
	return n, eris.Wrap(err, "sqlite: count fragments")
}

// --- aggregates ---

func (s *SQLiteStore) PersonLaunchStats(ctx context.Context, personID string) (*LaunchStats, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(l.id), COALESCE(SUM(l.votes_count), 0)
		 FROM launch_people lp
		 JOIN launches l ON lp.launch_id = l.id
		 WHERE lp.person_id = ? AND lp.role = 'maker'`,
		personID,
	)
	var stats LaunchStats
	if err := row.Scan(&stats.LaunchCount, &stats.TotalVotes); err != nil {
		return nil, eris.Wrapf(err, "sqlite: launch stats %s", personID)
	}

	// MAX() strips the column's declared type, so the newest launch comes
	// from its own query where the driver still decodes created_at as a
	// time.Time.
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT l.created_at
		 FROM launch_people lp
		 JOIN launches l ON lp.launch_id = l.id
		 WHERE lp.person_id = ? AND lp.role = 'maker'
		 ORDER BY l.created_at DESC LIMIT 1`,
		personID,
	).Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(err, "sqlite: last launch %s", personID)
	}
	if last.Valid {
		stats.LastLaunch = last.Time.UTC()
	}
	return &stats, nil
}

func (s *SQLiteStore) CountLaunches(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM launches`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count launches")
}

func (s *SQLiteStore) CountPersons(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM persons`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count persons")
}

// --- scan helpers ---

func scanPerson(row scannable) (*model.Person, error) {
	var p model.Person
	err := row.Scan(&p.ID, &p.Name, &p.Headline, &p.PlatformID, &p.Twitter,
		&p.GitHub, &p.LinkedIn, &p.Email, &p.Website, &p.ImportanceScore,
		&p.Summary, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan person")
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func scanCrawlState(row scannable) (*model.CrawlState, error) {
	var cs model.CrawlState
	var oldest, newest, windowBefore sql.NullTime
	err := row.Scan(&cs.Source, &oldest, &newest, &cs.Cursor, &windowBefore, &cs.Status, &cs.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan crawl state")
	}
	if oldest.Valid {
		cs.OldestSeen = oldest.Time.UTC()
	}
	if newest.Valid {
		cs.NewestSeen = newest.Time.UTC()
	}
	if windowBefore.Valid {
		cs.WindowBefore = windowBefore.Time.UTC()
	}
	return &cs, nil
}

func scanTask(row scannable) (*model.Task, error) {
	var t model.Task
	var searchAfter, leaseExpires sql.NullTime
	err := row.Scan(&t.ID, &t.PersonID, &t.Channel, &t.Status, &t.Priority,
		&t.Attempts, &searchAfter, &t.AvailableAt, &t.LeaseToken, &leaseExpires,
		&t.LastError, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan task")
	}
	if searchAfter.Valid {
		t.SearchAfter = searchAfter.Time.UTC()
	}
	if leaseExpires.Valid {
		t.LeaseExpiresAt = leaseExpires.Time.UTC()
	}
	t.AvailableAt = t.AvailableAt.UTC()
	return &t, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

// checkLease maps a zero-row fenced update to ErrLeaseLost.
func checkLease(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return resilience.ErrLeaseLost
	}
	return nil
}

func applyStat(stats *model.QueueStats, status model.TaskStatus, n int) {
	switch status {
	case model.TaskPending:
		stats.Pending = n
	case model.TaskProcessing:
		stats.Processing = n
	case model.TaskCompleted:
		stats.Completed = n
	case model.TaskFailed:
		stats.Failed = n
	case model.TaskDeadLettered:
		stats.DeadLettered = n
	}
}

func identityColumn(sys model.IdentitySystem) (string, bool) {
	switch sys {
	case model.SystemPlatform:
		return "platform_id", true
	case model.SystemTwitter:
		return "twitter", true
	case model.SystemGitHub:
		return "github", true
	case model.SystemLinkedIn:
		return "linkedin", true
	}
	return "", false
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
