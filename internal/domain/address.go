package domain

// Address is a saved shipping address.
type Address struct {
	ID         string `json:"_id"`
	Label      string `json:"label"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode"`
	IsDefault  bool   `json:"isDefault"`
}

// AddressInput creates or replaces an address.
type AddressInput struct {
	Label      string `json:"label" validate:"required,max=40"`
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	Country    string `json:"country" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required,min=4,max=10"`
}

// DefaultAddress returns the address flagged as default, or the first one.
func DefaultAddress(addrs []Address) (Address, bool) {
	for _, a := range addrs {
		if a.IsDefault {
			return a, true
		}
	}
	if len(addrs) > 0 {
		return addrs[0], true
	}
	return Address{}, false
}
