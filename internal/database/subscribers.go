package database

import (
	"database/sql"
	"fmt"
)

// UpsertSubscriber adds or updates a subscriber. The email is the unique
// key; an existing row keeps its last_sent watermark.
func (db *DB) UpsertSubscriber(email string, threshold, frequencyHours int) error {
	if threshold < 1 || threshold > 10 {
		return fmt.Errorf("threshold must be in [1,10], got %d", threshold)
	}
	_, err := db.conn.Exec(
		`INSERT INTO subscribers (email, threshold, frequency_hours) VALUES (?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET threshold = excluded.threshold,
		frequency_hours = excluded.frequency_hours`,
		email, threshold, frequencyHours,
	)
	return err
}

// RemoveSubscriber deletes a subscriber. Removing an unknown email is
// not an error.
func (db *DB) RemoveSubscriber(email string) error {
	_, err := db.conn.Exec("DELETE FROM subscribers WHERE email = ?", email)
	return err
}

// GetSubscribers returns all subscribers ordered by email.
func (db *DB) GetSubscribers() ([]Subscriber, error) {
	rows, err := db.conn.Query(
		"SELECT email, threshold, frequency_hours, last_sent FROM subscribers ORDER BY email",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Subscriber
	for rows.Next() {
		var s Subscriber
		if err := rows.Scan(&s.Email, &s.Threshold, &s.FrequencyHours, &s.LastSent); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// GetSubscriber returns one subscriber, or nil if the email is unknown.
func (db *DB) GetSubscriber(email string) (*Subscriber, error) {
	row := db.conn.QueryRow(
		"SELECT email, threshold, frequency_hours, last_sent FROM subscribers WHERE email = ?",
		email,
	)
	var s Subscriber
	if err := row.Scan(&s.Email, &s.Threshold, &s.FrequencyHours, &s.LastSent); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// AdvanceLastSent moves a subscriber's delivery watermark forward. The
// guard keeps last_sent monotonically non-decreasing.
func (db *DB) AdvanceLastSent(email string, sentAt int64) error {
	_, err := db.conn.Exec(
		"UPDATE subscribers SET last_sent = ? WHERE email = ? AND last_sent <= ?",
		sentAt, email, sentAt,
	)
	return err
}
