package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/tonglam/vehicle-track-sub000/internal/domain"
)

func (db *DB) GetDriver(ctx context.Context, id string) (domain.Driver, error) {
	var d domain.Driver
	err := db.Pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, phone, created_at FROM drivers WHERE id = $1`, id).
		Scan(&d.ID, &d.FirstName, &d.LastName, &d.Email, &d.Phone, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Driver{}, domain.Errf(domain.KindNotFound, "driver %s not found", id)
	}
	if err != nil {
		return domain.Driver{}, storeErr("get driver", err)
	}
	return d, nil
}

// SearchDrivers pages through drivers matching query against name, email and
// phone. The page is clamped to [1, totalPages] before the offset query runs.
func (db *DB) SearchDrivers(ctx context.Context, query string, page, pageSize int) ([]domain.Driver, int, error) {
	pattern := "%" + query + "%"
	var total int
	err := db.Pool.QueryRow(ctx, `
		SELECT count(*) FROM drivers
		WHERE $1 = '' OR first_name || ' ' || last_name ILIKE $2
		   OR COALESCE(email, '') ILIKE $2 OR COALESCE(phone, '') ILIKE $2`,
		query, pattern).Scan(&total)
	if err != nil {
		return nil, 0, storeErr("count drivers", err)
	}
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		return nil, 0, nil
	}
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT id, first_name, last_name, email, phone, created_at FROM drivers
		WHERE $1 = '' OR first_name || ' ' || last_name ILIKE $2
		   OR COALESCE(email, '') ILIKE $2 OR COALESCE(phone, '') ILIKE $2
		ORDER BY last_name, first_name
		LIMIT $3 OFFSET $4`,
		query, pattern, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, storeErr("search drivers", err)
	}
	defer rows.Close()
	var out []domain.Driver
	for rows.Next() {
		var d domain.Driver
		if err := rows.Scan(&d.ID, &d.FirstName, &d.LastName, &d.Email, &d.Phone, &d.CreatedAt); err != nil {
			return nil, 0, storeErr("search drivers", err)
		}
		out = append(out, d)
	}
	return out, totalPages, storeErr("search drivers", rows.Err())
}
