package database

// UpsertArticle stores an ingested article text. Re-ingesting the same
// URL refreshes the text but keeps the original row.
func (db *DB) UpsertArticle(url, title string, seenDate, fullText *string) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO articles (url, title, seen_date, full_text) VALUES (?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET title = excluded.title,
		seen_date = excluded.seen_date,
		full_text = COALESCE(excluded.full_text, articles.full_text)`,
		url, title, seenDate, fullText,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetRecentArticles returns the newest ingested articles.
func (db *DB) GetRecentArticles(limit int) ([]Article, error) {
	rows, err := db.conn.Query(
		`SELECT id, url, title, seen_date, full_text, collected_at FROM articles
		ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		var a Article
		if err := rows.Scan(&a.ID, &a.URL, &a.Title, &a.SeenDate, &a.FullText, &a.CollectedAt); err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}
