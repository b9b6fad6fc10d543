package storage

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/idscan/internal/config"
	"github.com/your-org/idscan/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore keeps the gallery in face_records and face_descriptors.
// It implements Backend directly; no JSON document is involved.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	return NewPostgresStoreFromDSN(ctx, cfg.DSN(), cfg.MaxConns)
}

func NewPostgresStoreFromDSN(ctx context.Context, dsn string, maxConns int) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Name() string {
	return "PostgreSQL"
}

// Migrate applies pending embedded migrations in file name order.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := s.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("query applied migrations: %w", err)
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate applied migrations: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") && !applied[e.Name()] {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrationsFS.ReadFile("migrations/" + file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(content)); err != nil {
				return fmt.Errorf("execute migration %s: %w", file, err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, file); err != nil {
				return fmt.Errorf("record migration %s: %w", file, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		slog.Info("applied migration", "file", file)
	}
	return nil
}

// Read returns the gallery in stored order. An empty table is ErrNotFound.
func (s *PostgresStore) Read(ctx context.Context) ([]models.FaceRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.id, r.label, r.full_name, r.group_name, d.seq, d.descriptor
		FROM face_records r
		LEFT JOIN face_descriptors d ON d.record_id = r.id
		ORDER BY r.position, d.seq`)
	if err != nil {
		return nil, fmt.Errorf("query gallery: %w", err)
	}
	defer rows.Close()

	var records []models.FaceRecord
	var lastID uuid.UUID
	for rows.Next() {
		var (
			id                     uuid.UUID
			label, fullName, group string
			seq                    *int32
			vec                    *pgvector.Vector
		)
		if err := rows.Scan(&id, &label, &fullName, &group, &seq, &vec); err != nil {
			return nil, fmt.Errorf("scan gallery row: %w", err)
		}
		if len(records) == 0 || id != lastID {
			records = append(records, models.FaceRecord{
				Label:       label,
				FullName:    fullName,
				Group:       group,
				Descriptors: []models.Descriptor{},
			})
			lastID = id
		}
		if seq == nil {
			continue
		}
		d := models.Descriptor{}
		if vec != nil {
			d = models.Descriptor(vec.Slice())
		}
		cur := &records[len(records)-1]
		cur.Descriptors = append(cur.Descriptors, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gallery rows: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}

// Write replaces the whole gallery in one transaction.
func (s *PostgresStore) Write(ctx context.Context, records []models.FaceRecord) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM face_records`); err != nil {
			return fmt.Errorf("clear gallery: %w", err)
		}

		batch := &pgx.Batch{}
		for pos, r := range records {
			id := uuid.New()
			batch.Queue(
				`INSERT INTO face_records (id, position, label, full_name, group_name) VALUES ($1, $2, $3, $4, $5)`,
				id, pos, r.Label, r.FullName, r.Group,
			)
			for seq, d := range r.Descriptors {
				var vec *pgvector.Vector
				if len(d) > 0 {
					v := pgvector.NewVector(d)
					vec = &v
				}
				batch.Queue(
					`INSERT INTO face_descriptors (record_id, seq, descriptor) VALUES ($1, $2, $3)`,
					id, seq, vec,
				)
			}
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert gallery: %w", err)
		}
		return nil
	})
}
