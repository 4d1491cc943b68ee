package domain

import (
	"maps"
	"time"
)

// CartItem is one line of the cart. The server populates the product
// reference under the productId key.
type CartItem struct {
	ID             string            `json:"_id"`
	Product        Product           `json:"productId"`
	Quantity       int               `json:"quantity"`
	Customizations map[string]string `json:"customizations,omitempty"`
	AddedAt        time.Time         `json:"addedAt"`
}

// ProductID returns the ID of the referenced product.
func (i CartItem) ProductID() string {
	return i.Product.ID
}

// LineTotal is the line's price at the product's effective unit price.
func (i CartItem) LineTotal() float64 {
	return i.Product.EffectivePrice() * float64(i.Quantity)
}

// Cart is the server-side cart as mirrored by the client. Items keep the
// server's insertion order.
type Cart struct {
	ID         string     `json:"_id,omitempty"`
	Items      []CartItem `json:"items"`
	TotalPrice float64    `json:"totalPrice"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Count is the sum of quantities over all lines.
func (c Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// FindItem returns the index of the line for productID, or -1.
func (c Cart) FindItem(productID string) int {
	for i, it := range c.Items {
		if it.Product.ID == productID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy safe to hand to readers.
func (c Cart) Clone() Cart {
	out := c
	out.Items = make([]CartItem, len(c.Items))
	for i, it := range c.Items {
		it.Customizations = maps.Clone(it.Customizations)
		it.Product.Images = append([]ProductImage(nil), it.Product.Images...)
		out.Items[i] = it
	}
	return out
}

// CartSummary is computed by the server; the client never derives it.
type CartSummary struct {
	TotalItems        int     `json:"totalItems"`
	TotalPrice        float64 `json:"totalPrice"`
	EstimatedShipping float64 `json:"estimatedShipping"`
	Tax               float64 `json:"tax"`
	FinalTotal        float64 `json:"finalTotal"`
}

// AddToCartRequest is the body of POST /user/cart.
type AddToCartRequest struct {
	ProductID      string            `json:"productId" validate:"required"`
	Quantity       int               `json:"quantity" validate:"required,gte=1"`
	Customizations map[string]string `json:"customizations,omitempty"`
}

// UpdateCartItemRequest is the body of PATCH /user/cart/:productId.
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1"`
}
