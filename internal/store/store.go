// Package store provides the embedded SQLite record store for contacts.
//
// Each contact is one row of the contacts table. The four nested collections
// (events, important notes, next actions, opportunities) are stored as one
// JSON text blob per column and are always rewritten as a whole.
//
// Architecture:
//   - Database file: .contacts/contacts.db (configurable)
//   - WAL mode: concurrent readers during writes
//   - One operation = one transaction; last writer wins
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/steveyegge/contacts/internal/contact"
)

// DB wraps the SQLite connection pool used for contact storage.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates a new database connection at the specified path.
//
// The database is opened with WAL enabled. The caller MUST call Close() when
// done, and InitSchema() before the first use of a new file.
//
// Example:
//
//	db, err := store.Open(".contacts/contacts.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Writers take the lock at BEGIN so a read-then-write transaction never
	// fails on upgrade while another writer holds it.
	conn, err := sql.Open("sqlite3", "file:"+path+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{
		conn: conn,
		path: path,
	}

	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection after checkpointing the WAL.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the contacts table and its indexes. This is idempotent.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS contacts (
		contact_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		company TEXT,
		position TEXT,
		events TEXT,           -- JSON array
		important_notes TEXT,  -- JSON array
		next_actions TEXT,     -- JSON array
		opportunities TEXT,    -- JSON array
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_contacts_name ON contacts(name);
	CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);
	CREATE INDEX IF NOT EXISTS idx_contacts_company ON contacts(company);
	CREATE INDEX IF NOT EXISTS idx_contacts_created ON contacts(created_at);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return storageErr("failed to initialize schema", err)
	}
	return nil
}

const selectColumns = `contact_id, name, email, company, position,
	       events, important_notes, next_actions, opportunities, created_at`

// Create inserts a new contact.
//
// A ContactID and CreatedAt are assigned when absent. Returns
// contact.ErrDuplicateKey if the id is already stored.
func (db *DB) Create(c *contact.Contact) (*contact.Contact, error) {
	return db.CreateContext(context.Background(), c)
}

// CreateContext inserts a new contact with context support.
func (db *DB) CreateContext(ctx context.Context, c *contact.Contact) (*contact.Contact, error) {
	row := c.Clone()
	row.SetDefaults()
	if row.ContactID == "" {
		row.ContactID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	row.CreatedAt = row.CreatedAt.UTC().Truncate(time.Microsecond)

	blobs, err := encodeCollections(row)
	if err != nil {
		return nil, err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("failed to begin transaction", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts WHERE contact_id = ?`, row.ContactID).Scan(&exists)
	if err != nil {
		return nil, storageErr("failed to check contact id", err)
	}
	if exists > 0 {
		return nil, fmt.Errorf("%w: %s", contact.ErrDuplicateKey, row.ContactID)
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO contacts (
		contact_id, name, email, company, position,
		events, important_notes, next_actions, opportunities, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ContactID,
		row.Name,
		stringToNull(row.Email),
		stringToNull(row.Company),
		stringToNull(row.Position),
		blobs.events,
		blobs.notes,
		blobs.actions,
		blobs.opportunities,
		contact.FormatTime(row.CreatedAt),
	)
	if err != nil {
		if errors.Is(err, sqlite3.CONSTRAINT_PRIMARYKEY) {
			return nil, fmt.Errorf("%w: %s", contact.ErrDuplicateKey, row.ContactID)
		}
		return nil, storageErr("failed to insert contact", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("failed to commit transaction", err)
	}
	return row, nil
}

// Get retrieves a single contact by id.
// Returns contact.ErrNotFound if the contact is not stored.
func (db *DB) Get(id string) (*contact.Contact, error) {
	return db.GetContext(context.Background(), id)
}

// GetContext retrieves a single contact with context support.
func (db *DB) GetContext(ctx context.Context, id string) (*contact.Contact, error) {
	return getContact(ctx, db.conn, id)
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getContact(ctx context.Context, q queryer, id string) (*contact.Contact, error) {
	row := q.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM contacts WHERE contact_id = ?`, id)
	c, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", contact.ErrNotFound, id)
		}
		return nil, err
	}
	return c, nil
}

// ListFilter configures the List query.
type ListFilter struct {
	// Search restricts results to contacts whose name, email, company or
	// position contains the substring (empty = all contacts)
	Search string
	// NameOnly matches Search against the name column only
	NameOnly bool
	// CaseSensitive disables ASCII case folding of Search
	CaseSensitive bool
	// OrderByName sorts by name instead of newest first
	OrderByName bool
	// Limit restricts the number of results (0 = no limit)
	Limit int
}

// List retrieves contacts matching the filter, newest first by default.
func (db *DB) List(filter ListFilter) ([]*contact.Contact, error) {
	return db.ListContext(context.Background(), filter)
}

// ListContext retrieves contacts with context support.
func (db *DB) ListContext(ctx context.Context, filter ListFilter) ([]*contact.Contact, error) {
	var conditions []string
	var args []any

	if filter.Search != "" {
		columns := []string{"name", "email", "company", "position"}
		if filter.NameOnly {
			columns = columns[:1]
		}
		for _, col := range columns {
			if filter.CaseSensitive {
				conditions = append(conditions, "instr("+col+", ?) > 0")
				args = append(args, filter.Search)
			} else {
				conditions = append(conditions, col+` LIKE ? ESCAPE '\'`)
				args = append(args, "%"+escapeLike(filter.Search)+"%")
			}
		}
	}

	query := `SELECT ` + selectColumns + ` FROM contacts`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " OR ")
	}

	if filter.OrderByName {
		query += " ORDER BY name ASC, created_at ASC"
	} else {
		query += " ORDER BY created_at DESC, rowid DESC"
	}

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("failed to list contacts", err)
	}
	defer rows.Close()

	contacts := []*contact.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("error iterating contacts", err)
	}
	return contacts, nil
}

// Update overwrites the fields set in patch and returns the stored result.
//
// Collections present in the patch are replaced wholesale. Fields absent
// from the patch, and CreatedAt, are left untouched. The whole update runs
// in one transaction. Returns contact.ErrNotFound if the contact is not
// stored.
func (db *DB) Update(id string, patch contact.Patch) (*contact.Contact, error) {
	return db.UpdateContext(context.Background(), id, patch)
}

// UpdateContext applies a partial update with context support.
func (db *DB) UpdateContext(ctx context.Context, id string, patch contact.Patch) (*contact.Contact, error) {
	var sets []string
	var args []any

	set := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if patch.Name.Set {
		set("name", patch.Name.Value)
	}
	if patch.Email.Set {
		set("email", stringToNull(patch.Email.Value))
	}
	if patch.Company.Set {
		set("company", stringToNull(patch.Company.Value))
	}
	if patch.Position.Set {
		set("position", stringToNull(patch.Position.Value))
	}
	for _, col := range []struct {
		name  string
		isSet bool
		value any
	}{
		{"events", patch.Events.Set, patch.Events.Value},
		{"important_notes", patch.ImportantNotes.Set, patch.ImportantNotes.Value},
		{"next_actions", patch.NextActions.Set, patch.NextActions.Value},
		{"opportunities", patch.Opportunities.Set, patch.Opportunities.Value},
	} {
		if !col.isSet {
			continue
		}
		blob, err := encodeBlob(col.name, col.value)
		if err != nil {
			return nil, err
		}
		set(col.name, blob)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if len(sets) > 0 {
		args = append(args, id)
		res, err := tx.ExecContext(ctx, `UPDATE contacts SET `+strings.Join(sets, ", ")+` WHERE contact_id = ?`, args...)
		if err != nil {
			return nil, storageErr("failed to update contact "+id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, storageErr("failed to update contact "+id, err)
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: %s", contact.ErrNotFound, id)
		}
	}

	updated, err := getContact(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("failed to commit transaction", err)
	}
	return updated, nil
}

// Delete removes a contact. Returns false if no contact had the id.
func (db *DB) Delete(id string) (bool, error) {
	return db.DeleteContext(context.Background(), id)
}

// DeleteContext removes a contact with context support.
func (db *DB) DeleteContext(ctx context.Context, id string) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM contacts WHERE contact_id = ?`, id)
	if err != nil {
		return false, storageErr("failed to delete contact "+id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("failed to delete contact "+id, err)
	}
	return n > 0, nil
}

// Count returns the total number of contacts.
func (db *DB) Count() (int, error) {
	return db.CountContext(context.Background())
}

// CountContext returns the total number of contacts with context support.
func (db *DB) CountContext(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM contacts").Scan(&count); err != nil {
		return 0, storageErr("failed to get contact count", err)
	}
	return count, nil
}

// Stats holds aggregate figures over all contacts.
type Stats struct {
	TotalContacts           int     `json:"totalContacts"`
	TotalOpportunities      int     `json:"totalOpportunities"`
	TotalOpportunitiesValue float64 `json:"totalOpportunitiesValue"`
}

// Stats aggregates opportunity counts and values over all contacts.
func (db *DB) Stats() (Stats, error) {
	return db.StatsContext(context.Background())
}

// StatsContext aggregates opportunity counts and values. Missing or null
// estimated values count as zero; values are summed as floating point.
func (db *DB) StatsContext(ctx context.Context) (Stats, error) {
	var stats Stats

	count, err := db.CountContext(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats.TotalContacts = count

	query := `
	SELECT COUNT(o.value),
	       COALESCE(SUM(CAST(json_extract(o.value, '$.estimatedValue') AS REAL)), 0.0)
	FROM contacts c, json_each(CASE WHEN json_valid(c.opportunities) THEN c.opportunities ELSE '[]' END) o
	`
	if err := db.conn.QueryRowContext(ctx, query).Scan(&stats.TotalOpportunities, &stats.TotalOpportunitiesValue); err != nil {
		return Stats{}, storageErr("failed to aggregate opportunities", err)
	}
	return stats, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*contact.Contact, error) {
	var c contact.Contact
	var email, company, position sql.NullString
	var events, notes, actions, opportunities sql.NullString
	var createdAt string

	err := row.Scan(
		&c.ContactID,
		&c.Name,
		&email,
		&company,
		&position,
		&events,
		&notes,
		&actions,
		&opportunities,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, storageErr("failed to scan contact", err)
	}

	c.Email = nullToString(email)
	c.Company = nullToString(company)
	c.Position = nullToString(position)

	if t, err := contact.ParseTime(createdAt); err == nil {
		c.CreatedAt = t
	}

	if err := decodeBlob(events, &c.Events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal events of %s: %w", c.ContactID, err)
	}
	if err := decodeBlob(notes, &c.ImportantNotes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal important notes of %s: %w", c.ContactID, err)
	}
	if err := decodeBlob(actions, &c.NextActions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal next actions of %s: %w", c.ContactID, err)
	}
	if err := decodeBlob(opportunities, &c.Opportunities); err != nil {
		return nil, fmt.Errorf("failed to unmarshal opportunities of %s: %w", c.ContactID, err)
	}
	c.SetDefaults()

	return &c, nil
}

type collectionBlobs struct {
	events, notes, actions, opportunities string
}

func encodeCollections(c *contact.Contact) (collectionBlobs, error) {
	var b collectionBlobs
	var err error
	if b.events, err = encodeBlob("events", c.Events); err != nil {
		return b, err
	}
	if b.notes, err = encodeBlob("important_notes", c.ImportantNotes); err != nil {
		return b, err
	}
	if b.actions, err = encodeBlob("next_actions", c.NextActions); err != nil {
		return b, err
	}
	if b.opportunities, err = encodeBlob("opportunities", c.Opportunities); err != nil {
		return b, err
	}
	return b, nil
}

// encodeBlob serializes one collection. A nil slice is stored as "[]".
func encodeBlob(column string, value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s: %w", column, err)
	}
	if string(data) == "null" {
		return "[]", nil
	}
	return string(data), nil
}

// decodeBlob parses one collection. Empty, NULL and "null" blobs leave dst
// untouched so SetDefaults can turn it into an empty slice.
func decodeBlob(blob sql.NullString, dst any) error {
	if !blob.Valid || blob.String == "" || blob.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(blob.String), dst)
}

func stringToNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullToString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func storageErr(msg string, err error) error {
	return fmt.Errorf("%w: %s: %w", contact.ErrStorage, msg, err)
}
