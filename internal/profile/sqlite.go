package profile

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"memetrend/internal/domain"
)

// SQLiteStore keeps preferences in a SQLite database, one row per tag.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS preferences (
		user_id TEXT NOT NULL,
		category TEXT NOT NULL,
		position INTEGER NOT NULL,
		tag TEXT NOT NULL,
		PRIMARY KEY (user_id, category, position)
	);`)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context, userID string) (domain.UserPreferences, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, tag FROM preferences WHERE user_id = ? ORDER BY category, position`, userID)
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	prefs := domain.UserPreferences{}
	for rows.Next() {
		var category, tag string
		if err := rows.Scan(&category, &tag); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		prefs[category] = append(prefs[category], tag)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(prefs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	return prefs, nil
}

// Save replaces every preference of userID.
func (s *SQLiteStore) Save(ctx context.Context, userID string, prefs domain.UserPreferences) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM preferences WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear preferences: %w", err)
	}
	for category, tags := range prefs {
		for pos, tag := range tags {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO preferences (user_id, category, position, tag) VALUES (?, ?, ?, ?)`,
				userID, category, pos, tag); err != nil {
				return fmt.Errorf("insert preference: %w", err)
			}
		}
	}
	return tx.Commit()
}
