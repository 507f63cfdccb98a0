// This file defines the restaurant repository. A restaurant row is joined
// with its restaurant_owners rows; the owner list is what the ownership
// check of the authorization middleware compares against.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/grp-2-projet-elective/cesieats-back/internal/database"
	"github.com/grp-2-projet-elective/cesieats-back/internal/model"
)

const restaurantColumns = `id, name, COALESCE(description, ''), image, categories, city, zip_code,
	address, latitude, longitude, created_at, updated_at`

// RestaurantRepo encapsulates all database queries related to restaurants.
type RestaurantRepo struct {
	db *sql.DB // db is the underlying database connection pool
}

// NewRestaurantRepo constructs a RestaurantRepo with the provided DB handle.
func NewRestaurantRepo(db *sql.DB) *RestaurantRepo {
	return &RestaurantRepo{db: db}
}

func scanRestaurant(s rowScanner) (model.Restaurant, error) {
	var (
		r    model.Restaurant
		cats []byte
	)
	if err := s.Scan(&r.ID, &r.Name, &r.Description, &r.Image, &cats, &r.Location.City,
		&r.Location.ZipCode, &r.Location.Address, &r.Location.Latitude, &r.Location.Longitude,
		&r.CreatedAt, &r.UpdatedAt); err != nil {
		return model.Restaurant{}, err
	}
	r.Categories = []string{}
	if len(cats) > 0 {
		if err := json.Unmarshal(cats, &r.Categories); err != nil {
			return model.Restaurant{}, err
		}
	}
	return r, nil
}

// Create inserts the restaurant and its owners in one transaction and
// returns the stored record.
func (r *RestaurantRepo) Create(ctx context.Context, in model.Restaurant) (model.Restaurant, error) {
	cats, err := json.Marshal(nonNil(in.Categories))
	if err != nil {
		return model.Restaurant{}, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Restaurant{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO restaurants (name, description, image, categories, city, zip_code, address, latitude, longitude)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		in.Name, in.Description, in.Image, cats, in.Location.City, in.Location.ZipCode,
		in.Location.Address, in.Location.Latitude, in.Location.Longitude)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return model.Restaurant{}, ErrRestaurantExists
		}
		return model.Restaurant{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Restaurant{}, err
	}
	if err := insertOwners(ctx, tx, uint64(id), in.OwnerIDs); err != nil {
		return model.Restaurant{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Restaurant{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

func insertOwners(ctx context.Context, tx *sql.Tx, restaurantID uint64, owners []uint64) error {
	for _, uid := range owners {
		if _, err := tx.ExecContext(ctx,
			"INSERT IGNORE INTO restaurant_owners (restaurant_id, user_id) VALUES (?,?)",
			restaurantID, uid); err != nil {
			return err
		}
	}
	return nil
}

// GetByID fetches a restaurant with its owners. It returns
// ErrRestaurantNotFound if no row is found.
func (r *RestaurantRepo) GetByID(ctx context.Context, id uint64) (model.Restaurant, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+restaurantColumns+" FROM restaurants WHERE id = ?", id)
	rest, err := scanRestaurant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Restaurant{}, ErrRestaurantNotFound
		}
		return model.Restaurant{}, err
	}
	rest.OwnerIDs, err = r.owners(ctx, id)
	if err != nil {
		return model.Restaurant{}, err
	}
	return rest, nil
}

func (r *RestaurantRepo) owners(ctx context.Context, id uint64) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT user_id FROM restaurant_owners WHERE restaurant_id = ? ORDER BY user_id", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []uint64{}
	for rows.Next() {
		var uid uint64
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		out = append(out, uid)
	}
	return out, rows.Err()
}

// List returns every restaurant ordered by id, owners included.
func (r *RestaurantRepo) List(ctx context.Context) ([]model.Restaurant, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+restaurantColumns+" FROM restaurants ORDER BY id")
	if err != nil {
		return nil, err
	}
	var out []model.Restaurant
	for rows.Next() {
		rest, err := scanRestaurant(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, rest)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].OwnerIDs, err = r.owners(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	if out == nil {
		out = []model.Restaurant{}
	}
	return out, nil
}

// Update overwrites the mutable columns of a restaurant. Owners are
// replaced when in.OwnerIDs is non-nil.
func (r *RestaurantRepo) Update(ctx context.Context, id uint64, in model.Restaurant) (model.Restaurant, error) {
	cats, err := json.Marshal(nonNil(in.Categories))
	if err != nil {
		return model.Restaurant{}, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Restaurant{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE restaurants SET name=?, description=?, image=?, categories=?, city=?, zip_code=?,
			address=?, latitude=?, longitude=?
		 WHERE id=?`,
		in.Name, in.Description, in.Image, cats, in.Location.City, in.Location.ZipCode,
		in.Location.Address, in.Location.Latitude, in.Location.Longitude, id)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return model.Restaurant{}, ErrRestaurantExists
		}
		return model.Restaurant{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Restaurant{}, ErrRestaurantNotFound
	}
	if in.OwnerIDs != nil {
		if _, err := tx.ExecContext(ctx, "DELETE FROM restaurant_owners WHERE restaurant_id = ?", id); err != nil {
			return model.Restaurant{}, err
		}
		if err := insertOwners(ctx, tx, id, in.OwnerIDs); err != nil {
			return model.Restaurant{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Restaurant{}, err
	}
	return r.GetByID(ctx, id)
}

// Delete removes a restaurant; owners go with it through the cascade.
func (r *RestaurantRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM restaurants WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRestaurantNotFound
	}
	return nil
}

// NameExists reports whether a restaurant already uses name.
func (r *RestaurantRepo) NameExists(ctx context.Context, name string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM restaurants WHERE name = ? LIMIT 1", name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// IsOwner reports whether userID is one of the restaurant's owners.
func (r *RestaurantRepo) IsOwner(ctx context.Context, restaurantID, userID uint64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM restaurant_owners WHERE restaurant_id = ? AND user_id = ? LIMIT 1",
		restaurantID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// OwnedBy returns the ids of the restaurants userID owns, lowest first.
func (r *RestaurantRepo) OwnedBy(ctx context.Context, userID uint64) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT restaurant_id FROM restaurant_owners WHERE user_id = ? ORDER BY restaurant_id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
