package database

import "database/sql"

// InsertAnalysis appends a new analysis document.
func (db *DB) InsertAnalysis(createdAt int64, content string) (int64, error) {
	result, err := db.conn.Exec(
		"INSERT INTO analyses (created_at, content) VALUES (?, ?)",
		createdAt, content,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetAnalysesAfter returns analyses created strictly after the given
// epoch-second watermark, oldest first. A watermark of 0 selects every
// document.
func (db *DB) GetAnalysesAfter(watermark int64) ([]Analysis, error) {
	rows, err := db.conn.Query(
		`SELECT id, created_at, content FROM analyses
		WHERE created_at > ? ORDER BY created_at ASC, id ASC`, watermark,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []Analysis
	for rows.Next() {
		var a Analysis
		if err := rows.Scan(&a.ID, &a.CreatedAt, &a.Content); err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}

// GetRecentAnalyses returns the newest analyses, most recent first.
func (db *DB) GetRecentAnalyses(limit int) ([]Analysis, error) {
	rows, err := db.conn.Query(
		`SELECT id, created_at, content FROM analyses
		ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []Analysis
	for rows.Next() {
		var a Analysis
		if err := rows.Scan(&a.ID, &a.CreatedAt, &a.Content); err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}

// GetAnalysis returns one analysis by ID, or nil if it does not exist.
func (db *DB) GetAnalysis(id int64) (*Analysis, error) {
	var a Analysis
	err := db.conn.QueryRow(
		"SELECT id, created_at, content FROM analyses WHERE id = ?", id,
	).Scan(&a.ID, &a.CreatedAt, &a.Content)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// InsertReasoningError records a persisted error artifact for a failed
// scoring cycle.
func (db *DB) InsertReasoningError(phase, detail string) error {
	_, err := db.conn.Exec(
		"INSERT INTO reasoning_errors (phase, detail) VALUES (?, ?)",
		phase, detail,
	)
	return err
}

// GetRecentReasoningErrors returns the newest error artifacts.
func (db *DB) GetRecentReasoningErrors(limit int) ([]ReasoningError, error) {
	rows, err := db.conn.Query(
		`SELECT id, phase, detail, created_at FROM reasoning_errors
		ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var errs []ReasoningError
	for rows.Next() {
		var e ReasoningError
		if err := rows.Scan(&e.ID, &e.Phase, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		errs = append(errs, e)
	}
	return errs, rows.Err()
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM analyses", &s.Analyses},
		{"SELECT COUNT(*) FROM articles", &s.Articles},
		{"SELECT COUNT(*) FROM subscribers", &s.Subscribers},
		{"SELECT COUNT(*) FROM reasoning_errors", &s.ReasoningErrors},
	}
	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	var latest *int64
	if err := db.conn.QueryRow("SELECT MAX(created_at) FROM analyses").Scan(&latest); err != nil {
		return nil, err
	}
	if latest != nil {
		s.LatestAnalysis = *latest
	}

	return s, nil
}
