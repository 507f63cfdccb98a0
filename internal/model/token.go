package model

// TokenClaims is the identity carried by both access and refresh tokens.
// RestaurantID is only set for restaurant owners bound to a restaurant.
type TokenClaims struct {
	ID           uint64  `json:"id"`
	Mail         string  `json:"mail"`
	Role         Role    `json:"role"`
	RestaurantID *uint64 `json:"restaurantId,omitempty"`
}

// TokenPair is returned by login and refresh. Only the refresh token is
// persisted (hashed) on the user row.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
