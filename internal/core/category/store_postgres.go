package category

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atriumhq/atrium/internal/platform/dberr"
)

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (repository *PostgresRepository) List(context context.Context) ([]*Category, error) {
	const query = `
		SELECT id, name, slug, sortorder, createdat
		FROM core.category
		ORDER BY sortorder ASC, name ASC`

	rows, err := repository.db.Query(context, query)
	if err != nil {
		return nil, dberr.Wrap(err, "list_categories")
	}
	defer rows.Close()

	categories := make([]*Category, 0)
	for rows.Next() {
		category := &Category{}
		if err := rows.Scan(&category.ID, &category.Name, &category.Slug, &category.SortOrder, &category.CreatedAt); err != nil {
			return nil, dberr.Wrap(err, "scan_category")
		}
		categories = append(categories, category)
	}
	return categories, nil
}

func (repository *PostgresRepository) GetByID(context context.Context, id int) (*Category, error) {
	const query = `
		SELECT id, name, slug, sortorder, createdat
		FROM core.category
		WHERE id = $1`

	category := &Category{}
	err := repository.db.QueryRow(context, query, id).Scan(
		&category.ID, &category.Name, &category.Slug, &category.SortOrder, &category.CreatedAt)
	if err != nil {
		return nil, dberr.Wrap(err, "get_category_by_id")
	}
	return category, nil
}

func (repository *PostgresRepository) Create(context context.Context, category *Category) error {
	const query = `
		INSERT INTO core.category (name, slug, sortorder, createdat)
		VALUES ($1, $2, $3, now())
		RETURNING id, createdat`

	err := repository.db.QueryRow(context, query,
		category.Name, category.Slug, category.SortOrder,
	).Scan(&category.ID, &category.CreatedAt)
	if err != nil {
		return dberr.Wrap(err, "create_category")
	}
	return nil
}

func (repository *PostgresRepository) Update(context context.Context, category *Category) error {
	const query = `
		UPDATE core.category
		SET name = $2, slug = $3, sortorder = $4
		WHERE id = $1`

	tag, err := repository.db.Exec(context, query,
		category.ID, category.Name, category.Slug, category.SortOrder)
	if err != nil {
		return dberr.Wrap(err, "update_category")
	}
	if tag.RowsAffected() == 0 {
		return dberr.Wrap(dberr.ErrNotFound, "update_category")
	}
	return nil
}

// Delete relies on the restrictive foreign key from published content;
// the violation surfaces as a conflict through dberr.
func (repository *PostgresRepository) Delete(context context.Context, id int) error {
	tag, err := repository.db.Exec(context, `DELETE FROM core.category WHERE id = $1`, id)
	if err != nil {
		return dberr.Wrap(err, "delete_category")
	}
	if tag.RowsAffected() == 0 {
		return dberr.Wrap(dberr.ErrNotFound, "delete_category")
	}
	return nil
}
