package persistent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/catalog-ingest/internal/entity"
	"github.com/andreyxaxa/catalog-ingest/pkg/postgres"
	"github.com/andreyxaxa/catalog-ingest/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	// Tables
	recordsTable = "catalog_records"
	mediaTable   = "catalog_media"

	// Record columns
	idColumn            = "id"
	externalIDColumn    = "external_id"
	nameColumn          = "name"
	descriptionColumn   = "description"
	categoryIDColumn    = "category_id"
	subcategoryIDColumn = "subcategory_id"
	attributesColumn    = "attributes"
	statusColumn        = "status"
	scheduledDateColumn = "scheduled_date"
	scheduledTimeColumn = "scheduled_time"
	publishAtColumn     = "publish_at"
	publishedAtColumn   = "published_at"
	createdAtColumn     = "created_at"
	updatedAtColumn     = "updated_at"

	// Media columns
	recordIDColumn     = "record_id"
	objectKeyColumn    = "object_key"
	priorityColumn     = "priority"
	isPrimaryColumn    = "is_primary"
	colorGroupColumn   = "color_group"
	ordinalColumn      = "ordinal"
	kindColumn         = "kind"
	contentTypeColumn  = "content_type"
	sizeColumn         = "size"
	originalNameColumn = "original_name"

	externalIDMatch = "lower(" + externalIDColumn + ") = lower(?)"
)

type CatalogRepo struct {
	*postgres.Postgres
}

func NewCatalogRepo(pg *postgres.Postgres) *CatalogRepo {
	return &CatalogRepo{pg}
}

func (r *CatalogRepo) Create(ctx context.Context, record *entity.CatalogRecord) error {
	attributes, err := json.Marshal(record.Attributes)
	if err != nil {
		return fmt.Errorf("CatalogRepo - Create - json.Marshal: %w", err)
	}

	sql, args, err := r.Builder.
		Insert(recordsTable).
		Columns(
			idColumn,
			externalIDColumn,
			nameColumn,
			descriptionColumn,
			categoryIDColumn,
			subcategoryIDColumn,
			attributesColumn,
			statusColumn,
			scheduledDateColumn,
			scheduledTimeColumn,
			publishAtColumn,
			publishedAtColumn,
			createdAtColumn,
			updatedAtColumn,
		).
		Values(
			record.ID,
			record.ExternalID,
			record.Name,
			record.Description,
			record.CategoryID,
			record.SubcategoryID,
			attributes,
			record.Status,
			record.ScheduledDate,
			record.ScheduledTime,
			record.PublishAt,
			record.PublishedAt,
			record.CreatedAt,
			record.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("CatalogRepo - Create - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		switch {
		case postgres.IsUniqueViolation(err):
			return fmt.Errorf("CatalogRepo - Create: %w", errs.ErrDuplicate)
		case postgres.IsForeignKeyViolation(err):
			return fmt.Errorf("CatalogRepo - Create: %w", errs.ErrReference)
		}
		return fmt.Errorf("CatalogRepo - Create - executor.Exec: %w", err)
	}

	return nil
}

func (r *CatalogRepo) ExistsByExternalID(ctx context.Context, externalID string) (bool, error) {
	sql, args, err := r.Builder.
		Select("1").
		From(recordsTable).
		Where(squirrel.Expr(externalIDMatch, externalID)).
		Prefix("SELECT EXISTS (").
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("CatalogRepo - ExistsByExternalID - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	var exists bool
	err = executor.QueryRow(ctx, sql, args...).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("CatalogRepo - ExistsByExternalID - executor.QueryRow: %w", err)
	}

	return exists, nil
}

func (r *CatalogRepo) GetByExternalID(ctx context.Context, externalID string) (*entity.CatalogRecord, error) {
	sql, args, err := r.Builder.
		Select(
			idColumn,
			externalIDColumn,
			nameColumn,
			descriptionColumn,
			categoryIDColumn,
			subcategoryIDColumn,
			attributesColumn,
			statusColumn,
			scheduledDateColumn,
			scheduledTimeColumn,
			publishAtColumn,
			publishedAtColumn,
			createdAtColumn,
			updatedAtColumn,
		).
		From(recordsTable).
		Where(squirrel.Expr(externalIDMatch, externalID)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("CatalogRepo - GetByExternalID - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	var (
		record     entity.CatalogRecord
		attributes []byte
	)
	err = executor.QueryRow(ctx, sql, args...).Scan(
		&record.ID,
		&record.ExternalID,
		&record.Name,
		&record.Description,
		&record.CategoryID,
		&record.SubcategoryID,
		&attributes,
		&record.Status,
		&record.ScheduledDate,
		&record.ScheduledTime,
		&record.PublishAt,
		&record.PublishedAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("CatalogRepo - GetByExternalID: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("CatalogRepo - GetByExternalID - executor.QueryRow: %w", err)
	}

	if len(attributes) > 0 {
		err = json.Unmarshal(attributes, &record.Attributes)
		if err != nil {
			return nil, fmt.Errorf("CatalogRepo - GetByExternalID - json.Unmarshal: %w", err)
		}
	}

	record.Media, err = r.listMedia(ctx, record.ID)
	if err != nil {
		return nil, fmt.Errorf("CatalogRepo - GetByExternalID - r.listMedia: %w", err)
	}

	return &record, nil
}

func (r *CatalogRepo) listMedia(ctx context.Context, recordID uuid.UUID) ([]entity.MediaAsset, error) {
	sql, args, err := r.Builder.
		Select(
			idColumn,
			recordIDColumn,
			objectKeyColumn,
			priorityColumn,
			isPrimaryColumn,
			colorGroupColumn,
			ordinalColumn,
			kindColumn,
			contentTypeColumn,
			sizeColumn,
			originalNameColumn,
			createdAtColumn,
		).
		From(mediaTable).
		Where(squirrel.Eq{recordIDColumn: recordID}).
		OrderBy(priorityColumn + " ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("CatalogRepo - listMedia - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	rows, err := executor.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("CatalogRepo - listMedia - executor.Query: %w", err)
	}
	defer rows.Close()

	media := make([]entity.MediaAsset, 0)
	for rows.Next() {
		var m entity.MediaAsset
		err = rows.Scan(
			&m.ID,
			&m.RecordID,
			&m.ObjectKey,
			&m.Priority,
			&m.Primary,
			&m.ColorGroup,
			&m.Ordinal,
			&m.Kind,
			&m.ContentType,
			&m.Size,
			&m.OriginalName,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("CatalogRepo - listMedia - rows.Scan: %w", err)
		}
		media = append(media, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("CatalogRepo - listMedia - rows.Err: %w", err)
	}

	return media, nil
}

func (r *CatalogRepo) InsertMedia(ctx context.Context, media []entity.MediaAsset) error {
	if len(media) == 0 {
		return nil
	}

	builder := r.Builder.
		Insert(mediaTable).
		Columns(
			idColumn,
			recordIDColumn,
			objectKeyColumn,
			priorityColumn,
			isPrimaryColumn,
			colorGroupColumn,
			ordinalColumn,
			kindColumn,
			contentTypeColumn,
			sizeColumn,
			originalNameColumn,
			createdAtColumn,
		)

	for _, m := range media {
		builder = builder.Values(
			m.ID,
			m.RecordID,
			m.ObjectKey,
			m.Priority,
			m.Primary,
			m.ColorGroup,
			m.Ordinal,
			m.Kind,
			m.ContentType,
			m.Size,
			m.OriginalName,
			m.CreatedAt,
		)
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("CatalogRepo - InsertMedia - builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return fmt.Errorf("CatalogRepo - InsertMedia: %w", errs.ErrRecordNotFound)
		}
		return fmt.Errorf("CatalogRepo - InsertMedia - executor.Exec: %w", err)
	}

	return nil
}

// UpdateStatus applies change in a single guarded UPDATE. It returns false
// when the row was not in one of change.From (or not yet due), which lets two
// concurrent writers race without either overwriting the other.
func (r *CatalogRepo) UpdateStatus(ctx context.Context, id uuid.UUID, change entity.StatusChange, now time.Time) (bool, error) {
	where := squirrel.And{
		squirrel.Eq{idColumn: id},
		squirrel.Eq{statusColumn: change.From},
	}
	if change.DueBy != nil {
		where = append(where, squirrel.LtOrEq{publishAtColumn: *change.DueBy})
	}

	sql, args, err := r.Builder.
		Update(recordsTable).
		Set(statusColumn, change.To).
		Set(scheduledDateColumn, change.ScheduledDate).
		Set(scheduledTimeColumn, change.ScheduledTime).
		Set(publishAtColumn, change.PublishAt).
		Set(publishedAtColumn, change.PublishedAt).
		Set(updatedAtColumn, now).
		Where(where).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("CatalogRepo - UpdateStatus - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("CatalogRepo - UpdateStatus - executor.Exec: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// ListDue returns scheduled records with publish_at <= now, keyed after
// after in id order so a sweep can page without offsets.
func (r *CatalogRepo) ListDue(ctx context.Context, now time.Time, after uuid.UUID, limit int) ([]entity.DueRecord, error) {
	sql, args, err := r.Builder.
		Select(idColumn, externalIDColumn, publishAtColumn).
		From(recordsTable).
		Where(squirrel.And{
			squirrel.Eq{statusColumn: entity.Scheduled},
			squirrel.LtOrEq{publishAtColumn: now},
			squirrel.Gt{idColumn: after},
		}).
		OrderBy(idColumn + " ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("CatalogRepo - ListDue - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	rows, err := executor.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("CatalogRepo - ListDue - executor.Query: %w", err)
	}
	defer rows.Close()

	due := make([]entity.DueRecord, 0, limit)
	for rows.Next() {
		var d entity.DueRecord
		err = rows.Scan(&d.ID, &d.ExternalID, &d.PublishAt)
		if err != nil {
			return nil, fmt.Errorf("CatalogRepo - ListDue - rows.Scan: %w", err)
		}
		due = append(due, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("CatalogRepo - ListDue - rows.Err: %w", err)
	}

	return due, nil
}

// Delete removes the record; its media rows go with it.
func (r *CatalogRepo) Delete(ctx context.Context, id uuid.UUID) error {
	sql, args, err := r.Builder.
		Delete(recordsTable).
		Where(squirrel.Eq{idColumn: id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("CatalogRepo - Delete - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("CatalogRepo - Delete - executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("CatalogRepo - Delete: %w", errs.ErrRecordNotFound)
	}

	return nil
}
