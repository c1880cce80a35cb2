package meme

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/aliskhannn/meme-generator/internal/model"
)

var ErrMemeNotFound = errors.New("meme not found")

// Repository stores meme generation metadata in the database. Artifact files
// live in object storage; rows here only describe them.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new Repository with the given DB connection.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new meme record in pending status.
func (r *Repository) Create(ctx context.Context, m model.Meme) error {
	query := `
		INSERT INTO memes (id, idea, style_name, status)
		VALUES ($1, $2, $3, $4)
   `

	_, err := r.db.ExecContext(ctx, query, m.ID, m.Idea, m.StyleName, m.Status)
	if err != nil {
		return fmt.Errorf("create: failed to save meme: %w", err)
	}

	return nil
}

// Get retrieves a meme record by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (model.Meme, error) {
	query := `
		SELECT idea, style_name, scene_prompt, caption, raw_path, final_path, status, error_kind, elapsed_ms, created_at
		FROM memes
		WHERE id = $1
    `

	var m model.Meme
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&m.Idea, &m.StyleName, &m.ScenePrompt, &m.Caption,
		&m.RawPath, &m.FinalPath, &m.Status, &m.ErrorKind,
		&m.ElapsedMS, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Meme{}, ErrMemeNotFound
		}

		return model.Meme{}, fmt.Errorf("get: failed to get meme: %w", err)
	}

	m.ID = id

	return m, nil
}

// UpdateResult records the outcome of a generation request.
func (r *Repository) UpdateResult(ctx context.Context, m model.Meme) error {
	query := `
		UPDATE memes
		SET scene_prompt = $1, caption = $2, raw_path = $3, final_path = $4,
		    status = $5, error_kind = $6, elapsed_ms = $7
		WHERE id = $8
    `

	res, err := r.db.ExecContext(
		ctx, query,
		m.ScenePrompt, m.Caption, m.RawPath, m.FinalPath,
		m.Status, m.ErrorKind, m.ElapsedMS, m.ID,
	)
	if err != nil {
		return fmt.Errorf("update: failed to update meme: %w", err)
	}

	rows, _ := res.RowsAffected()

	if rows == 0 {
		return ErrMemeNotFound
	}

	return nil
}

// Delete deletes a meme record by ID.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM memes WHERE id = $1
    `

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete: failed to delete meme: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete: failed to get number of rows affected: %w", err)
	}

	if n == 0 {
		return ErrMemeNotFound
	}

	return nil
}
