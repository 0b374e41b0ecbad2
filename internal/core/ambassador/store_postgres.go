package ambassador

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

const ambassadorColumns = `id, name, avatarurl, bio, socials, sortorder, active, createdat`

func scanAmbassador(row pgx.Row) (*Ambassador, error) {
	ambassador := &Ambassador{}
	err := row.Scan(
		&ambassador.ID, &ambassador.Name, &ambassador.AvatarURL, &ambassador.Bio,
		&ambassador.Socials, &ambassador.SortOrder, &ambassador.Active, &ambassador.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return ambassador, nil
}

func (repository *PostgresRepository) ListActive(context context.Context) ([]*Ambassador, error) {
	const query = `
		SELECT ` + ambassadorColumns + `
		FROM core.ambassador
		WHERE active
		ORDER BY sortorder ASC, id ASC`

	return repository.collect(context, query)
}

func (repository *PostgresRepository) ListAll(context context.Context) ([]*Ambassador, error) {
	const query = `
		SELECT ` + ambassadorColumns + `
		FROM core.ambassador
		ORDER BY sortorder ASC, id ASC`

	return repository.collect(context, query)
}

func (repository *PostgresRepository) collect(context context.Context, query string) ([]*Ambassador, error) {
	rows, err := repository.db.Query(context, query)
	if err != nil {
		return nil, dberr.Wrap(err, "list_ambassadors")
	}
	defer rows.Close()

	ambassadors := make([]*Ambassador, 0)
	for rows.Next() {
		ambassador, err := scanAmbassador(rows)
		if err != nil {
			return nil, dberr.Wrap(err, "scan_ambassador")
		}
		ambassadors = append(ambassadors, ambassador)
	}
	return ambassadors, nil
}

func (repository *PostgresRepository) GetByID(context context.Context, id int) (*Ambassador, error) {
	const query = `SELECT ` + ambassadorColumns + ` FROM core.ambassador WHERE id = $1`

	ambassador, err := scanAmbassador(repository.db.QueryRow(context, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, "get_ambassador_by_id")
	}
	return ambassador, nil
}

func (repository *PostgresRepository) Create(context context.Context, ambassador *Ambassador) error {
	const query = `
		INSERT INTO core.ambassador (name, avatarurl, bio, socials, sortorder, active, createdat)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING id, createdat`

	err := repository.db.QueryRow(context, query,
		ambassador.Name, ambassador.AvatarURL, ambassador.Bio,
		ambassador.Socials, ambassador.SortOrder, ambassador.Active,
	).Scan(&ambassador.ID, &ambassador.CreatedAt)
	if err != nil {
		return dberr.Wrap(err, "create_ambassador")
	}
	return nil
}

func (repository *PostgresRepository) Update(context context.Context, ambassador *Ambassador) error {
	const query = `
		UPDATE core.ambassador
		SET name = $2, avatarurl = $3, bio = $4, socials = $5, sortorder = $6, active = $7
		WHERE id = $1`

	tag, err := repository.db.Exec(context, query,
		ambassador.ID, ambassador.Name, ambassador.AvatarURL, ambassador.Bio,
		ambassador.Socials, ambassador.SortOrder, ambassador.Active)
	if err != nil {
		return dberr.Wrap(err, "update_ambassador")
	}
	if tag.RowsAffected() == 0 {
		return dberr.Wrap(dberr.ErrNotFound, "update_ambassador")
	}
	return nil
}

func (repository *PostgresRepository) Delete(context context.Context, id int) error {
	tag, err := repository.db.Exec(context, `DELETE FROM core.ambassador WHERE id = $1`, id)
	if err != nil {
		return dberr.Wrap(err, "delete_ambassador")
	}
	if tag.RowsAffected() == 0 {
		return dberr.Wrap(dberr.ErrNotFound, "delete_ambassador")
	}
	return nil
}
