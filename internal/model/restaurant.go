package model

import "time"

// Restaurant represents a venue selling menus and products. A restaurant
// may be run by several owners; OwnerIDs lists the users.id values that
// pass the ownership check for it. This struct corresponds to a row in
// the `restaurants` table plus its `restaurant_owners` rows.
//
// Fields:
//
//	ID          – primary key identifier.
//	Name        – unique restaurant name.
//	Description – optional free text.
//	Image       – picture URL.
//	Categories  – cuisine tags, stored as a JSON array.
//	OwnerIDs    – users allowed to mutate the restaurant.
//	Location    – postal address and coordinates.
type Restaurant struct {
	ID          uint64    `json:"id"`          // restaurants.id
	Name        string    `json:"name"`        // restaurants.name
	Description string    `json:"description"` // restaurants.description
	Image       string    `json:"image"`       // restaurants.image
	Categories  []string  `json:"categories"`  // restaurants.categories (JSON)
	OwnerIDs    []uint64  `json:"restaurantOwnersId"`
	Location    Location  `json:"location"`
	CreatedAt   time.Time `json:"createdAt"` // restaurants.created_at
	UpdatedAt   time.Time `json:"updatedAt"` // restaurants.updated_at
}

// HasOwner reports whether userID is among the restaurant owners.
func (r Restaurant) HasOwner(userID uint64) bool {
	for _, id := range r.OwnerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Location is embedded in restaurants, orders and deliveries.
type Location struct {
	City      string  `json:"city"`
	ZipCode   string  `json:"zipCode"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
