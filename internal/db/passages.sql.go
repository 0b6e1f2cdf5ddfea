package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/modfin/ashle/internal/db/vec"
)

const passageColumns = `id, label, name, content, embedding_model, embedding_vector, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPassage(row scanner) (Passage, error) {
	var i Passage
	var vecbin []byte
	var created, updated int64
	err := row.Scan(
		&i.ID,
		&i.Label,
		&i.Name,
		&i.Content,
		&i.EmbeddingModel,
		&vecbin,
		&created,
		&updated,
	)
	if err != nil {
		return Passage{}, err
	}
	i.CreatedAt = time.Unix(created, 0)
	i.UpdatedAt = time.Unix(updated, 0)

	i.EmbeddingVector, err = vec.DecodeFloat64s(vecbin)
	if err != nil {
		return Passage{}, fmt.Errorf("decoding embedding vector: %w", err)
	}
	return i, nil
}

func (q *Queries) AddPassage(
	ctx context.Context,
	label string,
	name string,
	content string,
	embeddingModel string,
	embeddingVector []float64,
) (Passage, error) {

	const addPassage = `
INSERT INTO passages (label, name, content, embedding_model, embedding_vector)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (label, name) DO
	UPDATE
    SET content = excluded.content,
		embedding_model = excluded.embedding_model,
		embedding_vector = excluded.embedding_vector,
		updated_at = strftime('%s', 'now')
RETURNING ` + passageColumns

	row := q.db.QueryRowContext(ctx, addPassage,
		label,
		name,
		content,
		embeddingModel,
		vec.EncodeFloat64s(embeddingVector),
	)

	p, err := scanPassage(row)
	if err != nil {
		return Passage{}, fmt.Errorf("insert passage: %w", err)
	}
	return p, nil
}

// DirtyPassage reports whether the stored content for label/name differs from content.
func (q *Queries) DirtyPassage(ctx context.Context, label string, name string, content string) (bool, error) {

	const dirty = `
	SELECT count(*) = 0
	FROM passages
	WHERE label = ? AND name = ? AND content = ?
`

	row := q.db.QueryRowContext(ctx, dirty,
		label,
		name,
		content,
	)
	var i bool
	if err := row.Scan(&i); err != nil {
		return false, err
	}
	return i, nil
}

// KNN returns up to limit passages whose label matches the LIKE pattern,
// nearest to vector first.
func (q *Queries) KNN(ctx context.Context, vector []float64, label string, limit int) ([]Passage, error) {

	const kNN = `
SELECT ` + passageColumns + `
FROM passages
WHERE label like ?
ORDER BY vec_dist(?, embedding_vector)
LIMIT ?
`

	rows, err := q.db.QueryContext(ctx, kNN,
		label,
		vec.EncodeFloat64s(vector),
		limit,
	)
	if err != nil {
		return nil, err
	}
	return collectPassages(rows)
}

// KNNJSON is KNN for a vector given as a JSON array, which vec_dist parses
// from TEXT.
func (q *Queries) KNNJSON(ctx context.Context, vector string, label string, limit int) ([]Passage, error) {

	const kNN = `
SELECT ` + passageColumns + `
FROM passages
WHERE label like ?
ORDER BY vec_dist(?, embedding_vector)
LIMIT ?
`

	if _, err := vec.ParseFloats(vector); err != nil {
		return nil, fmt.Errorf("parse vector: %w", err)
	}

	rows, err := q.db.QueryContext(ctx, kNN,
		label,
		vector,
		limit,
	)
	if err != nil {
		return nil, err
	}
	return collectPassages(rows)
}

func (q *Queries) ListPassages(ctx context.Context) ([]Passage, error) {

	const listPassages = `
SELECT ` + passageColumns + `
FROM passages
ORDER BY id
`

	rows, err := q.db.QueryContext(ctx, listPassages)
	if err != nil {
		return nil, err
	}
	return collectPassages(rows)
}

func collectPassages(rows *sql.Rows) ([]Passage, error) {
	defer rows.Close()
	var items []Passage
	for rows.Next() {
		p, err := scanPassage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
