package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/entity"
)

// ExtractedRepository stores one audit row per extracted document.
type ExtractedRepository interface {
	Insert(ctx context.Context, fileID string, record map[string]any) (*entity.ExtractedInformation, error)
	// UpdateFlag sets flagged and marks the rows for fileID visited. It
	// returns the number of rows touched.
	UpdateFlag(ctx context.Context, fileID string, flagged bool) (int64, error)
	CountExcept(ctx context.Context, fileID string) (int, error)
	Get(ctx context.Context, fileID string) (*entity.ExtractedInformation, error)
	Exists(ctx context.Context, fileID string) (bool, error)
}

type extractedRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewExtractedRepository(db *DB, logger *slog.Logger) ExtractedRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &extractedRepository{db: db, logger: logger}
}

var extractedColumns = []string{"id", "file_id", "record", "flagged", "visited", "created_at"}

func (r *extractedRepository) Insert(ctx context.Context, fileID string, record map[string]any) (*entity.ExtractedInformation, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, common.NewAppError("INVALID_RECORD", "record is not serializable", err)
	}
	row := &entity.ExtractedInformation{
		FileID:    fileID,
		Record:    raw,
		CreatedAt: time.Now().UTC(),
	}

	q, args := r.db.builder().Insert(tableExtracted).
		Columns("file_id", "record", "flagged", "visited", "created_at").
		Values(row.FileID, string(raw), false, false, row.CreatedAt).
		Returning("id").
		Query()
	err = r.db.query(ctx, q, args, func(rows *entsql.Rows) error {
		return rows.Scan(&row.ID)
	})
	if err != nil {
		r.logger.Error("repo.extracted.insert_failed", "file_id", fileID, "error", err)
		return nil, dbError("insert extracted_information", err)
	}
	r.logger.Info("repo.extracted.inserted", "id", row.ID, "file_id", fileID)
	return row, nil
}

func (r *extractedRepository) UpdateFlag(ctx context.Context, fileID string, flagged bool) (int64, error) {
	q, args := r.db.builder().Update(tableExtracted).
		Set("flagged", flagged).
		Set("visited", true).
		Where(entsql.EQ("file_id", fileID)).
		Query()
	n, err := r.db.exec(ctx, q, args)
	if err != nil {
		r.logger.Error("repo.extracted.update_flag_failed", "file_id", fileID, "error", err)
		return 0, dbError("update flag", err)
	}
	r.logger.Info("repo.extracted.flag_updated", "file_id", fileID, "flagged", flagged, "rows", n)
	return n, nil
}

func (r *extractedRepository) CountExcept(ctx context.Context, fileID string) (int, error) {
	b := r.db.builder()
	q, args := b.Select(entsql.Count("*")).
		From(b.Table(tableExtracted)).
		Where(entsql.NEQ("file_id", fileID)).
		Query()
	var n int
	err := r.db.query(ctx, q, args, func(rows *entsql.Rows) error {
		return rows.Scan(&n)
	})
	if err != nil {
		r.logger.Error("repo.extracted.count_failed", "file_id", fileID, "error", err)
		return 0, dbError("count extracted_information", err)
	}
	return n, nil
}

// Get returns the newest row for fileID.
func (r *extractedRepository) Get(ctx context.Context, fileID string) (*entity.ExtractedInformation, error) {
	b := r.db.builder()
	q, args := b.Select(extractedColumns...).
		From(b.Table(tableExtracted)).
		Where(entsql.EQ("file_id", fileID)).
		OrderBy(entsql.Desc("id")).
		Limit(1).
		Query()

	var found *entity.ExtractedInformation
	err := r.db.query(ctx, q, args, func(rows *entsql.Rows) error {
		var (
			e   entity.ExtractedInformation
			raw []byte
		)
		if err := rows.Scan(&e.ID, &e.FileID, &raw, &e.Flagged, &e.Visited, &e.CreatedAt); err != nil {
			return err
		}
		e.Record = raw
		found = &e
		return nil
	})
	if err != nil {
		r.logger.Error("repo.extracted.get_failed", "file_id", fileID, "error", err)
		return nil, dbError("get extracted_information", err)
	}
	if found == nil {
		return nil, common.NewAppError("NOT_FOUND", "extracted_information "+fileID, common.ErrNotFound)
	}
	return found, nil
}

func (r *extractedRepository) Exists(ctx context.Context, fileID string) (bool, error) {
	b := r.db.builder()
	q, args := b.Select(entsql.Count("*")).
		From(b.Table(tableExtracted)).
		Where(entsql.EQ("file_id", fileID)).
		Query()
	var n int
	if err := r.db.query(ctx, q, args, func(rows *entsql.Rows) error {
		return rows.Scan(&n)
	}); err != nil {
		return false, dbError("lookup extracted_information", err)
	}
	return n > 0, nil
}
