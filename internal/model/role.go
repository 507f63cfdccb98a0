package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Role is the capability class of a user. The numeric values match the
// rows seeded in the `roles` table and are what travels in users.role_id.
type Role uint8

const (
	RoleCustomer             Role = 1
	RoleRestaurantOwner      Role = 2
	RoleDeliveryMan          Role = 3
	RoleTechnicalDepartment  Role = 4
	RoleCommercialDepartment Role = 5
	RoleExternal             Role = 6
)

var roleNames = map[Role]string{
	RoleCustomer:             "CUSTOMER",
	RoleRestaurantOwner:      "RESTAURANT_OWNER",
	RoleDeliveryMan:          "DELIVERY_MAN",
	RoleTechnicalDepartment:  "TECHNICAL_DEPARTMENT",
	RoleCommercialDepartment: "COMMERCIAL_DEPARTMENT",
	RoleExternal:             "EXTERNAL",
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "UNKNOWN(" + strconv.Itoa(int(r)) + ")"
}

// ParseRole accepts either the role name (case-insensitive) or its numeric id.
func ParseRole(s string) (Role, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		r := Role(n)
		if n > 0 && n < 256 && r.Valid() {
			return r, nil
		}
		return 0, fmt.Errorf("unknown role id %d", n)
	}
	for r, name := range roleNames {
		if name == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// RoleRef is a role as clients send it: the numeric id (2) or the name,
// quoted ("RESTAURANT_OWNER" or "2"). Resolve it with ParseRole.
type RoleRef string

func (r *RoleRef) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = RoleRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("role must be a number or a name")
	}
	*r = RoleRef(n.String())
	return nil
}
