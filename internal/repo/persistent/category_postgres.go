package persistent

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/catalog-ingest/internal/entity"
	"github.com/andreyxaxa/catalog-ingest/pkg/postgres"
	"github.com/andreyxaxa/catalog-ingest/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	// Table
	categoriesTable = "categories"

	// Columns
	parentIDColumn = "parent_id"
)

type CategoryRepo struct {
	*postgres.Postgres
}

func NewCategoryRepo(pg *postgres.Postgres) *CategoryRepo {
	return &CategoryRepo{pg}
}

func (r *CategoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Category, error) {
	sql, args, err := r.Builder.
		Select(idColumn, parentIDColumn, nameColumn).
		From(categoriesTable).
		Where(squirrel.Eq{idColumn: id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("CategoryRepo - GetByID - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	var c entity.Category
	err = executor.QueryRow(ctx, sql, args...).Scan(&c.ID, &c.ParentID, &c.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("CategoryRepo - GetByID: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("CategoryRepo - GetByID - executor.QueryRow: %w", err)
	}

	return &c, nil
}

// Resolve checks that categoryID exists and, when given, that subcategoryID
// exists and is a child of it.
func (r *CategoryRepo) Resolve(ctx context.Context, categoryID uuid.UUID, subcategoryID *uuid.UUID) error {
	_, err := r.GetByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return fmt.Errorf("%w: category %s does not exist", errs.ErrReference, categoryID)
		}
		return fmt.Errorf("CategoryRepo - Resolve - r.GetByID: %w", err)
	}

	if subcategoryID == nil {
		return nil
	}

	sub, err := r.GetByID(ctx, *subcategoryID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return fmt.Errorf("%w: subcategory %s does not exist", errs.ErrReference, *subcategoryID)
		}
		return fmt.Errorf("CategoryRepo - Resolve - r.GetByID: %w", err)
	}

	if sub.ParentID == nil || *sub.ParentID != categoryID {
		return fmt.Errorf("%w: subcategory %s does not belong to category %s", errs.ErrReference, *subcategoryID, categoryID)
	}

	return nil
}
