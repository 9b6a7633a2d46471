package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name" validate:"notblank,max=200"`
	Description  string          `json:"description"`
	Brand        string          `json:"brand"`
	Category     string          `json:"category"`
	ImageURL     string          `json:"image_url"`
	Price        decimal.Decimal `json:"price"`
	CountInStock int             `json:"count_in_stock" validate:"gte=0"`
	Rating       float64         `json:"rating"`
	NumReviews   int             `json:"num_reviews"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Reviews      []Review        `json:"reviews,omitempty"`
}

func (p *Product) InStock(quantity int) bool {
	return p.CountInStock >= quantity
}

type Review struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id" validate:"gt=0"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Rating    int       `json:"rating" validate:"gte=1,lte=5"`
	Comment   string    `json:"comment" validate:"notblank,max=2000"`
	CreatedAt time.Time `json:"created_at"`
}
