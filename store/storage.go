package store

import (
	"context"
	"errors"
	"fmt"

	"coursebot/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"
)

type DBStorer interface {
	ListSubjects(context.Context) ([]types.Subject, error)
	GetMaterial(context.Context, int64) (*types.Material, error)
	ListPendingMaterials(context.Context, int) ([]types.Material, error)
	MarkMaterialProcessed(context.Context, int64) error
	SaveEmbeddings(ctx context.Context, materialID int64, records []types.EmbeddingRecord, replace bool) (int, error)
	ListEmbeddings(ctx context.Context, subjectID *int64) ([]types.RetrievedChunk, error)
	SaveImage(context.Context, types.ExtractedImage) (int64, error)
}

// PgxIface is the part of *pgxpool.Pool the store uses.
type PgxIface interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

type PostgresStore struct {
	pool   PgxIface
	logger zerolog.Logger
}

func NewPostgresStore(ctx context.Context, connStr string, logger zerolog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return NewWithPool(pool, logger), nil
}

func NewWithPool(pool PgxIface, logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{
		pool:   pool,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

const selectSubjects = `SELECT id, subject_code, subject_name, semester, department FROM subjects ORDER BY semester, subject_name`

func (p *PostgresStore) ListSubjects(ctx context.Context) ([]types.Subject, error) {
	rows, err := p.pool.Query(ctx, selectSubjects)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subjects []types.Subject
	for rows.Next() {
		var s types.Subject
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.Semester, &s.Department); err != nil {
			return nil, err
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}

const materialColumns = `id, subject_id, title, description, file_path, file_type, file_size, upload_date, is_processed`

func scanMaterial(row pgx.Row) (types.Material, error) {
	var m types.Material
	err := row.Scan(
		&m.ID,
		&m.SubjectID,
		&m.Title,
		&m.Description,
		&m.FilePath,
		&m.FileType,
		&m.FileSize,
		&m.UploadDate,
		&m.IsProcessed)
	return m, err
}

func (p *PostgresStore) GetMaterial(ctx context.Context, id int64) (*types.Material, error) {
	m, err := scanMaterial(p.pool.QueryRow(ctx, "SELECT "+materialColumns+" FROM materials WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", types.ErrMaterialNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (p *PostgresStore) ListPendingMaterials(ctx context.Context, limit int) ([]types.Material, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT "+materialColumns+" FROM materials WHERE is_processed = FALSE AND file_type = 'pdf' ORDER BY upload_date, id LIMIT $1",
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var materials []types.Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

func (p *PostgresStore) MarkMaterialProcessed(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, "UPDATE materials SET is_processed = TRUE WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", types.ErrMaterialNotFound, id)
	}
	return nil
}

const (
	deleteEmbeddings = `DELETE FROM document_embeddings WHERE material_id = $1`
	insertEmbedding  = `INSERT INTO document_embeddings (material_id, chunk_text, chunk_index, page_number, embedding, embedding_model)
	VALUES ($1, $2, $3, $4, $5, $6)`
)

// SaveEmbeddings writes all records in one transaction. With replace set
// the material's previous rows are removed in the same transaction, so
// readers see either the old set or the new one.
func (p *PostgresStore) SaveEmbeddings(ctx context.Context, materialID int64, records []types.EmbeddingRecord, replace bool) (int, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if replace {
		tag, err := tx.Exec(ctx, deleteEmbeddings, materialID)
		if err != nil {
			return 0, fmt.Errorf("delete previous embeddings: %w", err)
		}
		if n := tag.RowsAffected(); n > 0 {
			p.logger.Info().Int64("material_id", materialID).Int64("rows", n).Msg("replacing previous embeddings")
		}
	}

	for _, r := range records {
		_, err := tx.Exec(ctx, insertEmbedding,
			materialID, r.ChunkText, r.ChunkIndex, r.PageNumber, pgvector.NewVector(r.Vector), r.Model)
		if err != nil {
			return 0, fmt.Errorf("insert chunk %d: %w", r.ChunkIndex, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return len(records), nil
}

const (
	selectEmbeddings = `
		SELECT de.id, de.material_id, de.chunk_text, de.chunk_index, de.page_number,
		       de.embedding, de.embedding_model, de.created_at, m.title
		FROM document_embeddings de
		JOIN materials m ON de.material_id = m.id`
	selectEmbeddingsBySubject = selectEmbeddings + `
		WHERE m.subject_id = $1
		ORDER BY de.id`
	selectAllEmbeddings = selectEmbeddings + `
		ORDER BY de.id`
)

// ListEmbeddings loads every candidate for a full scan, optionally scoped to
// one subject. Similarity is left zero.
func (p *PostgresStore) ListEmbeddings(ctx context.Context, subjectID *int64) ([]types.RetrievedChunk, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if subjectID != nil {
		rows, err = p.pool.Query(ctx, selectEmbeddingsBySubject, *subjectID)
	} else {
		rows, err = p.pool.Query(ctx, selectAllEmbeddings)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []types.RetrievedChunk
	for rows.Next() {
		var (
			c   types.RetrievedChunk
			vec pgvector.Vector
		)
		err := rows.Scan(
			&c.ID,
			&c.MaterialID,
			&c.ChunkText,
			&c.ChunkIndex,
			&c.PageNumber,
			&vec,
			&c.Model,
			&c.CreatedAt,
			&c.MaterialTitle)
		if err != nil {
			return nil, err
		}
		c.Vector = vec.Slice()
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	p.logger.Debug().Int("candidates", len(chunks)).Msg("loaded embeddings")
	return chunks, nil
}

func (p *PostgresStore) SaveImage(ctx context.Context, img types.ExtractedImage) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO extracted_images (material_id, image_path, page_number, image_type)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		img.MaterialID, img.Path, img.Page, img.Type).Scan(&id)
	return id, err
}

func (p *PostgresStore) createTables(ctx context.Context, dimension int) error {
	query := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS subjects (
		id BIGSERIAL PRIMARY KEY,
		subject_code TEXT NOT NULL UNIQUE,
		subject_name TEXT NOT NULL,
		semester INTEGER NOT NULL DEFAULT 1,
		department TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS materials (
		id BIGSERIAL PRIMARY KEY,
		subject_id BIGINT NOT NULL REFERENCES subjects(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		file_path TEXT NOT NULL,
		file_type TEXT NOT NULL DEFAULT 'pdf',
		file_size BIGINT NOT NULL DEFAULT 0,
		upload_date TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		is_processed BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_materials_subject_id ON materials(subject_id);

	CREATE TABLE IF NOT EXISTS document_embeddings (
		id BIGSERIAL PRIMARY KEY,
		material_id BIGINT NOT NULL REFERENCES materials(id),
		chunk_text TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		page_number INTEGER NOT NULL,
		embedding vector(%d) NOT NULL,
		embedding_model TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_document_embeddings_material_id ON document_embeddings(material_id);

	CREATE TABLE IF NOT EXISTS extracted_images (
		id BIGSERIAL PRIMARY KEY,
		material_id BIGINT NOT NULL REFERENCES materials(id),
		image_path TEXT NOT NULL,
		page_number INTEGER NOT NULL,
		image_type TEXT NOT NULL,
		caption TEXT NOT NULL DEFAULT ''
	);
	`, dimension)
	_, err := p.pool.Exec(ctx, query)
	return err
}

// Init creates the schema. dimension fixes the vector column width for the
// deployment.
func (p *PostgresStore) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension %d", types.ErrDimensionMismatch, dimension)
	}
	return p.createTables(ctx, dimension)
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.logger.Info().Msg("Postgres connection pool is closed")
	}
	return nil
}
