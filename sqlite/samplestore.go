// Package sqlite provides a local, file-backed cache of column samples. The
// distinct-value resolver's offline stage reads from this cache when a field
// has no server representation or the backend is unreachable. Samples are
// stored per datasource and column, bounded in count, as string-coerced
// values.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Mr-7mdan/Bayan-sub002/core/distinct"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS column_samples (
	datasource_id TEXT NOT NULL,
	field         TEXT NOT NULL,
	position      INTEGER NOT NULL,
	value         TEXT NOT NULL,
	PRIMARY KEY (datasource_id, field, position)
);`

// StoreOptions configures a SampleStore.
type StoreOptions struct {
	// MaxSamplesPerColumn bounds how many values Put keeps per column.
	MaxSamplesPerColumn int
}

// DefaultStoreOptions returns the reference bounds for a sample store.
func DefaultStoreOptions() *StoreOptions {
	return &StoreOptions{MaxSamplesPerColumn: 50}
}

// SampleStore is a SQLite-backed distinct.SampleSource.
type SampleStore struct {
	db      *sql.DB
	options *StoreOptions
	logger  *zap.Logger
}

// Ensure SampleStore implements the resolver's sample source contract.
var _ distinct.SampleSource = (*SampleStore)(nil)

// NewSampleStore opens (or creates) the cache database at path. Use
// ":memory:" for an ephemeral store.
func NewSampleStore(path string, options *StoreOptions, logger *zap.Logger) (*SampleStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = DefaultStoreOptions()
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sample store: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize sample store schema: %w", err)
	}

	return &SampleStore{db: db, options: options, logger: logger}, nil
}

// Put replaces the cached samples for one column. Nil values are dropped;
// everything else is stored string-coerced. At most MaxSamplesPerColumn
// values are kept, in their incoming order.
func (s *SampleStore) Put(ctx context.Context, datasourceID, field string, values []any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin sample store transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM column_samples WHERE datasource_id = ? AND field = ?`,
		datasourceID, field); err != nil {
		return fmt.Errorf("failed to clear previous samples: %w", err)
	}

	position := 0
	for _, value := range values {
		if value == nil {
			continue
		}
		if position >= s.options.MaxSamplesPerColumn {
			break
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO column_samples (datasource_id, field, position, value) VALUES (?, ?, ?, ?)`,
			datasourceID, field, position, fmt.Sprintf("%v", value)); err != nil {
			return fmt.Errorf("failed to insert sample: %w", err)
		}
		position++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit samples: %w", err)
	}
	s.logger.Debug("Cached column samples",
		zap.String("datasource", datasourceID), zap.String("field", field), zap.Int("count", position))
	return nil
}

// Samples returns the cached values for one column in cache order.
func (s *SampleStore) Samples(ctx context.Context, datasourceID, field string) ([]any, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT value FROM column_samples WHERE datasource_id = ? AND field = ? ORDER BY position`,
		datasourceID, field)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var values []any
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after scanning samples: %w", err)
	}
	return values, nil
}

// Columns lists the columns with cached samples for a datasource.
func (s *SampleStore) Columns(ctx context.Context, datasourceID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT field FROM column_samples WHERE datasource_id = ? ORDER BY field`,
		datasourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sample columns: %w", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var column string
		if err := rows.Scan(&column); err != nil {
			return nil, fmt.Errorf("failed to scan column name: %w", err)
		}
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after scanning columns: %w", err)
	}
	return columns, nil
}

// Close releases the underlying database handle.
func (s *SampleStore) Close() error {
	return s.db.Close()
}
