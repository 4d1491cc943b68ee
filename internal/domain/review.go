package domain

import (
	"time"

	"github.com/utafrali/storefront/pkg/pagination"
)

// Review is a buyer's rating of a product. Verified is set when the reviewer
// has ordered the product.
type Review struct {
	ID        string    `json:"_id"`
	User      User      `json:"user"`
	Product   string    `json:"product"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ReviewInput is the body of POST /user/reviews.
type ReviewInput struct {
	ProductID string `json:"productId" validate:"required"`
	Rating    int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment   string `json:"comment,omitempty" validate:"max=1000"`
}

// ReviewPage is one page of a product's reviews.
type ReviewPage struct {
	Reviews    []Review        `json:"reviews"`
	Pagination pagination.Meta `json:"pagination"`
}
