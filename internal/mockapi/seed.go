package mockapi

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/slug"
)

// Demo accounts created by seeding.
const (
	DemoEmail     = "demo@storefront.dev"
	DemoPassword  = "Demo@1234"
	AdminEmail    = "admin@storefront.dev"
	AdminPassword = "Admin@1234"
)

var demoCatalog = []struct {
	name, brand, category string
	price, discount       float64
	stock                 int
	rating                float64
	reviews               int
}{
	{"Ceramic Coffee Mug", "Clayworks", "Kitchen", 349, 10, 42, 4.6, 128},
	{"Cast Iron Skillet", "Forge & Co", "Kitchen", 1899, 0, 12, 4.8, 311},
	{"Linen Table Runner", "Loom House", "Home Decor", 799, 25, 30, 4.2, 57},
	{"Brass Desk Lamp", "Lumen", "Home Decor", 2499, 15, 5, 4.4, 89},
	{"Organic Cotton Tee", "Plainwear", "Apparel", 599, 0, 100, 4.1, 203},
	{"Merino Wool Beanie", "Plainwear", "Apparel", 899, 20, 0, 4.7, 64},
	{"Bamboo Cutting Board", "Clayworks", "Kitchen", 649, 0, 25, 4.3, 77},
	{"Scented Soy Candle", "Lumen", "Home Decor", 449, 5, 60, 4.5, 150},
	{"Canvas Tote Bag", "Loom House", "Accessories", 399, 0, 80, 4.0, 45},
	{"Stainless Water Bottle", "Forge & Co", "Accessories", 999, 30, 3, 4.9, 402},
	{"Crème Brûlée Torch", "Forge & Co", "Kitchen", 1299, 0, 8, 4.2, 19},
	{"Handwoven Throw Blanket", "Loom House", "Home Decor", 2999, 35, 7, 4.6, 98},
}

// demoCategories are seeded before the catalog. Garden stays empty.
var demoCategories = []struct {
	name, parent, description string
}{
	{"Home & Living", "", "Everything for the home."},
	{"Kitchen", "Home & Living", "Cookware and tableware."},
	{"Home Decor", "Home & Living", "Lighting, textiles and accents."},
	{"Apparel", "", "Everyday clothing."},
	{"Accessories", "", "Bags, bottles and small goods."},
	{"Garden", "", "Planters and outdoor tools."},
}

func (s *Server) seed() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, c := range demoCategories {
		cat := &domain.Category{
			ID:          "cat-" + slug.Generate(c.name),
			Name:        c.name,
			Slug:        slug.Generate(c.name),
			Description: c.description,
			Image:       "/images/categories/" + slug.Generate(c.name) + ".jpg",
			CreatedAt:   created,
			UpdatedAt:   created,
		}
		if c.parent != "" {
			cat.ParentCategory = "cat-" + slug.Generate(c.parent)
		}
		s.st.categories = append(s.st.categories, cat)
	}
	for i, c := range demoCatalog {
		p := &domain.Product{
			ID:                 fmt.Sprintf("prod-%03d", i+1),
			Name:               c.name,
			Slug:               slug.Generate(c.name),
			Description:        fmt.Sprintf("%s by %s.", c.name, c.brand),
			Price:              c.price,
			DiscountPercentage: c.discount,
			Stock:              c.stock,
			Category:           &domain.CategoryRef{ID: "cat-" + slug.Generate(c.category), Name: c.category},
			Images:             []domain.ProductImage{{URL: "/images/" + slug.Generate(c.name) + ".jpg", Alt: c.name, IsFeatured: true}},
			AverageRating:      c.rating,
			ReviewCount:        c.reviews,
			IsInStock:          c.stock > 0,
			Brand:              c.brand,
		}
		if c.discount > 0 {
			p.DiscountedPrice = round2(c.price * (1 - c.discount/100))
		}
		s.st.products = append(s.st.products, p)
	}

	for _, u := range []struct {
		name, email, password string
		role                  domain.Role
	}{
		{"Demo Shopper", DemoEmail, DemoPassword, domain.RoleUser},
		{"Store Admin", AdminEmail, AdminPassword, domain.RoleAdmin},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.MinCost)
		if err != nil {
			return fmt.Errorf("hash seed password: %w", err)
		}
		a := s.st.addAccount(domain.User{
			Name:          u.name,
			Email:         u.email,
			Phone:         "9876543210",
			CountryCode:   "+91",
			Role:          u.role,
			EmailVerified: true,
			CreatedAt:     created,
			UpdatedAt:     created,
		}, hash)
		s.st.addresses[a.user.ID] = []*domain.Address{{
			ID:         "addr-" + a.user.ID,
			Label:      "Home",
			Street:     "12 MG Road",
			City:       "Bengaluru",
			State:      "Karnataka",
			Country:    "India",
			PostalCode: "560001",
			IsDefault:  true,
		}}
	}
	return nil
}
