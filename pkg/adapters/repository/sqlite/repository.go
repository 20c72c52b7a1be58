package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/core/domain"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/ports"
	_ "modernc.org/sqlite" // Local SQLite driver
)

// timeLayout keeps stored timestamps fixed-width so they sort as text.
const timeLayout = "2006-01-02T15:04:05.000Z"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbURL string) (*SQLiteRepository, error) {
	driverName := "sqlite"
	if strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://") {
		driverName = "libsql"
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, err
	}

	if driverName == "sqlite" {
		// SQLite allows a single writer; concurrent track requests queue here.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := migrate(db); err != nil {
		return nil, err
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS visitors (
		id TEXT PRIMARY KEY,
		ip_hash TEXT NOT NULL UNIQUE,
		company_name TEXT,
		country TEXT,
		device_type TEXT,
		industry TEXT,
		referrer TEXT,
		utm_source TEXT,
		utm_medium TEXT,
		utm_campaign TEXT,
		screen_resolution TEXT,
		visit_count INTEGER DEFAULT 0,
		total_time_spent INTEGER DEFAULT 0,
		pages_per_session REAL DEFAULT 0,
		engagement_score INTEGER DEFAULT 0,
		intent_score INTEGER DEFAULT 0,
		heat_level TEXT DEFAULT 'Cold',
		first_visit_date TEXT NOT NULL,
		last_visit_date TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_visitors_intent ON visitors(intent_score);
	CREATE INDEX IF NOT EXISTS idx_visitors_last_visit ON visitors(last_visit_date);

	CREATE TABLE IF NOT EXISTS page_events (
		id TEXT PRIMARY KEY,
		visitor_id TEXT NOT NULL,
		page_url TEXT NOT NULL,
		event_type TEXT NOT NULL,
		time_spent INTEGER DEFAULT 0,
		scroll_depth INTEGER DEFAULT 0,
		click_target TEXT,
		created_at TEXT NOT NULL,
		FOREIGN KEY(visitor_id) REFERENCES visitors(id)
	);
	CREATE INDEX IF NOT EXISTS idx_page_events_visitor_id ON page_events(visitor_id);
	`
	_, err := db.Exec(query)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// RecordEvent stores event and folds it into the visitor's rollup. The visitor
// is created on first sight of its IP hash; IDs are filled in on both values.
func (r *SQLiteRepository) RecordEvent(ctx context.Context, visitor *domain.Visitor, event *domain.StoredEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := formatTime(event.CreatedAt)

	// 1. Find or create the visitor
	var visitorID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM visitors WHERE ip_hash = ?`, visitor.IPHash).Scan(&visitorID)
	switch {
	case err == sql.ErrNoRows:
		visitorID = ulid.Make().String()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO visitors (id, ip_hash, country, device_type, referrer, utm_source, utm_medium, utm_campaign,
				screen_resolution, heat_level, first_visit_date, last_visit_date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			visitorID, visitor.IPHash, visitor.Country, visitor.DeviceType, nullString(visitor.Referrer),
			nullString(visitor.UTMSource), nullString(visitor.UTMMedium), nullString(visitor.UTMCampaign),
			nullString(visitor.ScreenResolution), domain.HeatCold, now, now)
		if err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		// Later non-empty values win, except the referrer which keeps first touch.
		_, err = tx.ExecContext(ctx, `
			UPDATE visitors SET
				country = COALESCE(?, country),
				device_type = COALESCE(?, device_type),
				referrer = COALESCE(referrer, ?),
				utm_source = COALESCE(?, utm_source),
				utm_medium = COALESCE(?, utm_medium),
				utm_campaign = COALESCE(?, utm_campaign),
				screen_resolution = COALESCE(?, screen_resolution),
				last_visit_date = ?
			WHERE id = ?`,
			visitor.Country, visitor.DeviceType, nullString(visitor.Referrer),
			nullString(visitor.UTMSource), nullString(visitor.UTMMedium), nullString(visitor.UTMCampaign),
			nullString(visitor.ScreenResolution), now, visitorID)
		if err != nil {
			return err
		}
	}

	// 2. Insert the event
	event.ID = ulid.Make().String()
	event.VisitorID = visitorID
	_, err = tx.ExecContext(ctx, `
		INSERT INTO page_events (id, visitor_id, page_url, event_type, time_spent, scroll_depth, click_target, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, visitorID, event.PageURL, string(event.EventType), event.TimeSpent, event.ScrollDepth,
		nullString(event.ClickTarget), now)
	if err != nil {
		return err
	}

	// 3. Rollup counters (Atomic)
	switch event.EventType {
	case domain.EventPageView:
		_, err = tx.ExecContext(ctx, `UPDATE visitors SET visit_count = visit_count + 1 WHERE id = ?`, visitorID)
	case domain.EventPageExit:
		_, err = tx.ExecContext(ctx, `UPDATE visitors SET total_time_spent = total_time_spent + ? WHERE id = ?`, event.TimeSpent, visitorID)
	}
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	visitor.ID = visitorID
	return nil
}

const visitorColumns = `id, ip_hash, company_name, country, device_type, industry, referrer, utm_source, utm_medium,
	utm_campaign, screen_resolution, visit_count, total_time_spent, pages_per_session, engagement_score,
	intent_score, heat_level, first_visit_date, last_visit_date`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVisitor(row rowScanner) (*domain.Visitor, error) {
	var v domain.Visitor
	var company, country, device, industry sql.NullString
	var referrer, source, medium, campaign, screen sql.NullString
	var firstVisit, lastVisit string

	if err := row.Scan(&v.ID, &v.IPHash, &company, &country, &device, &industry, &referrer, &source, &medium,
		&campaign, &screen, &v.VisitCount, &v.TotalTimeSpent, &v.PagesPerSession, &v.EngagementScore,
		&v.IntentScore, &v.HeatLevel, &firstVisit, &lastVisit); err != nil {
		return nil, err
	}

	v.CompanyName = optional(company)
	v.Country = optional(country)
	v.DeviceType = optional(device)
	v.Industry = optional(industry)
	v.Referrer = referrer.String
	v.UTMSource = source.String
	v.UTMMedium = medium.String
	v.UTMCampaign = campaign.String
	v.ScreenResolution = screen.String
	v.FirstVisitDate = parseTime(firstVisit)
	v.LastVisitDate = parseTime(lastVisit)
	return &v, nil
}

func optional(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func (r *SQLiteRepository) GetVisitorByIPHash(ctx context.Context, ipHash string) (*domain.Visitor, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+visitorColumns+` FROM visitors WHERE ip_hash = ?`, ipHash)
	v, err := scanVisitor(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return v, err
}

func (r *SQLiteRepository) ListVisitors(ctx context.Context, q domain.VisitorQuery) ([]domain.Visitor, error) {
	query := `SELECT ` + visitorColumns + ` FROM visitors WHERE 1 = 1`
	args := []interface{}{}

	if q.Country != "" {
		query += " AND country = ?"
		args = append(args, q.Country)
	}
	if q.HeatLevel != "" {
		query += " AND heat_level = ?"
		args = append(args, q.HeatLevel)
	}
	if q.Industry != "" {
		query += " AND industry = ?"
		args = append(args, q.Industry)
	}
	if q.DateFrom != nil {
		query += " AND last_visit_date >= ?"
		args = append(args, formatTime(*q.DateFrom))
	}
	if q.DateTo != nil {
		query += " AND last_visit_date < ?"
		args = append(args, formatTime(*q.DateTo))
	}

	switch q.SortBy {
	case domain.SortVisitCount:
		query += " ORDER BY visit_count DESC"
	case domain.SortLastVisitDate:
		query += " ORDER BY last_visit_date DESC"
	default:
		query += " ORDER BY intent_score DESC"
	}
	query += ", last_visit_date DESC LIMIT ?"
	args = append(args, q.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	visitors := []domain.Visitor{}
	for rows.Next() {
		v, err := scanVisitor(rows)
		if err != nil {
			return nil, err
		}
		visitors = append(visitors, *v)
	}
	return visitors, rows.Err()
}

func (r *SQLiteRepository) FilterOptions(ctx context.Context) (*domain.FilterOptions, error) {
	countries, err := r.distinct(ctx, "country")
	if err != nil {
		return nil, err
	}
	industries, err := r.distinct(ctx, "industry")
	if err != nil {
		return nil, err
	}
	return &domain.FilterOptions{
		Countries:  countries,
		Industries: industries,
		HeatLevels: append([]string(nil), domain.HeatLevels...),
	}, nil
}

// distinct lists the non-empty values of a visitors column. column is never
// user input.
func (r *SQLiteRepository) distinct(ctx context.Context, column string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT `+column+` FROM visitors WHERE `+column+` IS NOT NULL AND `+column+` != '' ORDER BY `+column)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func (r *SQLiteRepository) ListEvents(ctx context.Context, visitorID string) ([]domain.StoredEvent, error) {
	return r.queryEvents(ctx, `WHERE visitor_id = ?`, visitorID)
}

func (r *SQLiteRepository) Dump(ctx context.Context) ([]domain.StoredEvent, error) {
	return r.queryEvents(ctx, ``)
}

func (r *SQLiteRepository) queryEvents(ctx context.Context, where string, args ...interface{}) ([]domain.StoredEvent, error) {
	query := `SELECT id, visitor_id, page_url, event_type, time_spent, scroll_depth, click_target, created_at
			  FROM page_events ` + where + ` ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.StoredEvent
	for rows.Next() {
		var e domain.StoredEvent
		var eventType, createdAt string
		var clickTarget sql.NullString
		if err := rows.Scan(&e.ID, &e.VisitorID, &e.PageURL, &eventType, &e.TimeSpent, &e.ScrollDepth, &clickTarget, &createdAt); err != nil {
			return nil, err
		}
		e.EventType = domain.EventType(eventType)
		e.ClickTarget = clickTarget.String
		e.CreatedAt = parseTime(createdAt)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Ensure interface compliance
var _ ports.EventRepository = (*SQLiteRepository)(nil)
