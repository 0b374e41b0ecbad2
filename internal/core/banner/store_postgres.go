package banner

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atriumhq/atrium/internal/platform/dberr"
)

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const bannerColumns = `id, title, imageurl, linkurl, sortorder, active, startsat, endsat, createdat`

func scanBanner(row pgx.Row) (*Banner, error) {
	banner := &Banner{}
	err := row.Scan(
		&banner.ID, &banner.Title, &banner.ImageURL, &banner.LinkURL,
		&banner.SortOrder, &banner.Active, &banner.StartsAt, &banner.EndsAt,
		&banner.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return banner, nil
}

func (repository *PostgresRepository) ListVisible(context context.Context) ([]*Banner, error) {
	const query = `
		SELECT ` + bannerColumns + `
		FROM core.banner
		WHERE active
		  AND (startsat IS NULL OR startsat <= now())
		  AND (endsat IS NULL OR endsat >= now())
		ORDER BY sortorder ASC, id ASC`

	return repository.collect(context, query)
}

func (repository *PostgresRepository) ListAll(context context.Context) ([]*Banner, error) {
	const query = `
		SELECT ` + bannerColumns + `
		FROM core.banner
		ORDER BY sortorder ASC, id ASC`

	return repository.collect(context, query)
}

func (repository *PostgresRepository) collect(context context.Context, query string) ([]*Banner, error) {
	rows, err := repository.db.Query(context, query)
	if err != nil {
		return nil, dberr.Wrap(err, "list_banners")
	}
	defer rows.Close()

	banners := make([]*Banner, 0)
	for rows.Next() {
		banner, err := scanBanner(rows)
		if err != nil {
			return nil, dberr.Wrap(err, "scan_banner")
		}
		banners = append(banners, banner)
	}
	return banners, nil
}

func (repository *PostgresRepository) GetByID(context context.Context, id int) (*Banner, error) {
	const query = `SELECT ` + bannerColumns + ` FROM core.banner WHERE id = $1`

	banner, err := scanBanner(repository.db.QueryRow(context, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, "get_banner_by_id")
	}
	return banner, nil
}

func (repository *PostgresRepository) Create(context context.Context, banner *Banner) error {
	const query = `
		INSERT INTO core.banner (title, imageurl, linkurl, sortorder, active, startsat, endsat, createdat)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING id, createdat`

	err := repository.db.QueryRow(context, query,
		banner.Title, banner.ImageURL, banner.LinkURL,
		banner.SortOrder, banner.Active, banner.StartsAt, banner.EndsAt,
	).Scan(&banner.ID, &banner.CreatedAt)
	if err != nil {
		return dberr.Wrap(err, "create_banner")
	}
	return nil
}

func (repository *PostgresRepository) Update(context context.Context, banner *Banner) error {
	const query = `
		UPDATE core.banner
		SET title = $2, imageurl = $3, linkurl = $4, sortorder = $5,
			active = $6, startsat = $7, endsat = $8
		WHERE id = $1`

	tag, err := repository.db.Exec(context, query,
		banner.ID, banner.Title, banner.ImageURL, banner.LinkURL,
		banner.SortOrder, banner.Active, banner.StartsAt, banner.EndsAt)
	if err != nil {
		return dberr.Wrap(err, "update_banner")
	}
	if tag.RowsAffected() == 0 {
		return dberr.Wrap(dberr.ErrNotFound, "update_banner")
	}
	return nil
}

func (repository *PostgresRepository) Delete(context context.Context, id int) error {
	tag, err := repository.db.Exec(context, `DELETE FROM core.banner WHERE id = $1`, id)
	if err != nil {
		return dberr.Wrap(err, "delete_banner")
	}
	if tag.RowsAffected() == 0 {
		return dberr.Wrap(dberr.ErrNotFound, "delete_banner")
	}
	return nil
}
