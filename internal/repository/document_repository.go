package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/grp-2-projet-elective/cesieats-back/internal/model"
)

const documentColumns = `id, kind, restaurant_id, customer_id, delivery_man_id, state, body, created_at, updated_at`

// DocumentRepo stores orders, menus, products and deliveries in the shared
// `documents` table. Every query is scoped by kind.
type DocumentRepo struct{ db *sql.DB }

func NewDocumentRepo(db *sql.DB) *DocumentRepo { return &DocumentRepo{db: db} }

func scanDocument(s rowScanner) (model.Document, error) {
	var (
		d    model.Document
		body []byte
	)
	if err := s.Scan(&d.ID, &d.Kind, &d.RestaurantID, &d.CustomerID, &d.DeliveryManID, &d.State,
		&body, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return model.Document{}, err
	}
	d.Body = body
	return d, nil
}

func bodyOrEmpty(d model.Document) []byte {
	if len(d.Body) == 0 {
		return []byte("{}")
	}
	return d.Body
}

// Create inserts d and returns the stored row.
func (r *DocumentRepo) Create(ctx context.Context, d model.Document) (model.Document, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (kind, restaurant_id, customer_id, delivery_man_id, state, body)
		 VALUES (?,?,?,?,?,?)`,
		d.Kind, d.RestaurantID, d.CustomerID, d.DeliveryManID, d.State, bodyOrEmpty(d))
	if err != nil {
		return model.Document{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Document{}, err
	}
	return r.GetByID(ctx, d.Kind, uint64(id))
}

// GetByID returns ErrDocumentNotFound when id does not exist for kind.
func (r *DocumentRepo) GetByID(ctx context.Context, kind model.Kind, id uint64) (model.Document, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE kind = ? AND id = ?", kind, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Document{}, ErrDocumentNotFound
	}
	return d, err
}

// List returns all documents of kind ordered by id.
func (r *DocumentRepo) List(ctx context.Context, kind model.Kind) ([]model.Document, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE kind = ? ORDER BY id", kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Update overwrites the indexed columns and body of one document.
func (r *DocumentRepo) Update(ctx context.Context, kind model.Kind, id uint64, d model.Document) (model.Document, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents SET restaurant_id=?, customer_id=?, delivery_man_id=?, state=?, body=?
		 WHERE kind = ? AND id = ?`,
		d.RestaurantID, d.CustomerID, d.DeliveryManID, d.State, bodyOrEmpty(d), kind, id)
	if err != nil {
		return model.Document{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Document{}, ErrDocumentNotFound
	}
	return r.GetByID(ctx, kind, id)
}

// Delete removes one document.
func (r *DocumentRepo) Delete(ctx context.Context, kind model.Kind, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE kind = ? AND id = ?", kind, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// Count returns the number of documents of kind.
func (r *DocumentRepo) Count(ctx context.Context, kind model.Kind) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE kind = ?", kind).Scan(&n)
	return n, err
}
