package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/yingtu35/linkcrawler/internal/linkcheck"
	"github.com/yingtu35/linkcrawler/internal/webscraper"
)

// Storage archives finished crawl reports
type Storage struct {
	db *sql.DB
}

// NewStorage creates a new Storage instance, opening/creating the DB and initializing schema
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{db: db}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema creates tables and indices if they don't exist
func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawls (
		session_id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		state TEXT NOT NULL,
		max_depth INTEGER NOT NULL,
		pages_scanned INTEGER DEFAULT 0,
		links_found INTEGER DEFAULT 0,
		links_checked INTEGER DEFAULT 0,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS links (
		link_id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		text TEXT,
		resource_kind TEXT NOT NULL,
		found_on_page TEXT NOT NULL,
		status TEXT NOT NULL,
		status_code INTEGER,
		error TEXT,
		checked_at TIMESTAMP,
		served_from_cache INTEGER DEFAULT 0,
		FOREIGN KEY (session_id) REFERENCES crawls(session_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_links_session ON links(session_id, position);
	CREATE INDEX IF NOT EXISTS idx_links_status ON links(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveReport stores a report and its links, replacing any earlier copy of
// the same session
func (s *Storage) SaveReport(report *webscraper.Report) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM crawls WHERE session_id = ?", report.SessionID); err != nil {
		return fmt.Errorf("failed to replace crawl: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO crawls (session_id, target, state, max_depth, pages_scanned, links_found, links_checked, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.SessionID, report.Target, string(report.State), report.MaxDepth,
		report.PagesScanned, report.LinksFound, report.LinksChecked, report.StartedAt, report.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert crawl: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO links (session_id, position, url, text, resource_kind, found_on_page, status, status_code, error, checked_at, served_from_cache)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare link insert: %w", err)
	}
	defer stmt.Close()

	for i, l := range report.Links {
		var checkedAt sql.NullTime
		if l.Checked() {
			checkedAt = sql.NullTime{Time: l.CheckedAt, Valid: true}
		}
		_, err := stmt.Exec(report.SessionID, i, l.URL, l.Text, string(l.Kind), l.FoundOnPage,
			string(l.Status), l.StatusCode, l.Error, checkedAt, l.ServedFromCache)
		if err != nil {
			return fmt.Errorf("failed to insert link %s: %w", l.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}
	return nil
}

// LoadReport retrieves a report by session ID, returns nil if not found
func (s *Storage) LoadReport(sessionID string) (*webscraper.Report, error) {
	report := webscraper.Report{SessionID: sessionID}
	var state string
	err := s.db.QueryRow(`
		SELECT target, state, max_depth, pages_scanned, links_found, links_checked, started_at, finished_at
		FROM crawls
		WHERE session_id = ?
	`, sessionID).Scan(&report.Target, &state, &report.MaxDepth, &report.PagesScanned,
		&report.LinksFound, &report.LinksChecked, &report.StartedAt, &report.FinishedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl: %w", err)
	}
	report.State = webscraper.State(state)

	rows, err := s.db.Query(`
		SELECT url, text, resource_kind, found_on_page, status, status_code, error, checked_at, served_from_cache
		FROM links
		WHERE session_id = ?
		ORDER BY position ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l linkcheck.Link
		var kind, status string
		var text, errMsg sql.NullString
		var code sql.NullInt64
		var checkedAt sql.NullTime
		if err := rows.Scan(&l.URL, &text, &kind, &l.FoundOnPage, &status, &code, &errMsg, &checkedAt, &l.ServedFromCache); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		l.Text = text.String
		l.Kind = linkcheck.ResourceKind(kind)
		l.Status = linkcheck.Status(status)
		l.StatusCode = int(code.Int64)
		l.Error = errMsg.String
		if checkedAt.Valid {
			l.CheckedAt = checkedAt.Time
		}
		report.Links = append(report.Links, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}

	return &report, nil
}

// ListCrawls returns the most recent crawls first, at most limit of them
func (s *Storage) ListCrawls(limit int) ([]*CrawlRecord, error) {
	rows, err := s.db.Query(`
		SELECT c.session_id, c.target, c.state, c.max_depth, c.pages_scanned, c.links_found, c.links_checked,
			c.started_at, c.finished_at,
			(SELECT COUNT(*) FROM links l WHERE l.session_id = c.session_id AND l.status = ?)
		FROM crawls c
		ORDER BY c.started_at DESC
		LIMIT ?
	`, string(linkcheck.StatusBroken), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list crawls: %w", err)
	}
	defer rows.Close()

	var records []*CrawlRecord
	for rows.Next() {
		var r CrawlRecord
		if err := rows.Scan(&r.SessionID, &r.Target, &r.State, &r.MaxDepth, &r.PagesScanned, &r.LinksFound,
			&r.LinksChecked, &r.StartedAt, &r.FinishedAt, &r.BrokenLinks); err != nil {
			return nil, fmt.Errorf("failed to scan crawl: %w", err)
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating crawls: %w", err)
	}

	return records, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}
