package domain

import (
	"encoding/json"

	"github.com/utafrali/storefront/pkg/pagination"
)

// WishlistPage is one page of wishlisted products. Older servers send the
// list under items instead of products.
type WishlistPage struct {
	Products   []Product       `json:"products"`
	Pagination pagination.Meta `json:"pagination"`
}

func (w *WishlistPage) UnmarshalJSON(data []byte) error {
	var v struct {
		Products   []Product       `json:"products"`
		Items      []Product       `json:"items"`
		Pagination pagination.Meta `json:"pagination"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	w.Products = v.Products
	if w.Products == nil {
		w.Products = v.Items
	}
	w.Pagination = v.Pagination
	return nil
}

// AddToWishlistRequest is the body of POST /user/wishlist.
type AddToWishlistRequest struct {
	ProductID string `json:"productId" validate:"required"`
}
