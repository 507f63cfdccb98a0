package model

import (
	"encoding/json"
	"time"
)

// Kind names a document-backed resource service.
type Kind string

const (
	KindOrder    Kind = "orders"
	KindMenu     Kind = "menus"
	KindProduct  Kind = "products"
	KindDelivery Kind = "deliveries"
)

// Kinds lists every document kind in route registration order.
var Kinds = []Kind{KindOrder, KindMenu, KindProduct, KindDelivery}

// Document is a row of the `documents` table. Orders, menus, products and
// deliveries share it: the indexed columns are the ones used by the
// authorization checks and listings, the rest of the payload stays in Body.
//
// Fields:
//
//	ID            – primary key identifier.
//	Kind          – which resource service owns the row.
//	RestaurantID  – restaurant the document belongs to (0 when unset).
//	CustomerID    – ordering customer (orders, deliveries).
//	DeliveryManID – assigned courier (deliveries).
//	State         – orderState / deliveryState.
//	Body          – remaining JSON fields as sent by the client.
type Document struct {
	ID            uint64          `json:"id"`            // documents.id
	Kind          Kind            `json:"kind"`          // documents.kind
	RestaurantID  uint64          `json:"restaurantId"`  // documents.restaurant_id
	CustomerID    uint64          `json:"customerId"`    // documents.customer_id
	DeliveryManID uint64          `json:"deliveryManId"` // documents.delivery_man_id
	State         string          `json:"state"`         // documents.state
	Body          json.RawMessage `json:"body"`          // documents.body
	CreatedAt     time.Time       `json:"createdAt"`     // documents.created_at
	UpdatedAt     time.Time       `json:"updatedAt"`     // documents.updated_at
}

// Stats is returned by GET /{kind}/stats.
type Stats struct {
	Count int64 `json:"count"`
}
