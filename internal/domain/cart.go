package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MinItemQuantity = 1
	MaxItemQuantity = 99
)

type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    string     `bson:"user_id" json:"user_id"`
	Items     []CartItem `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// CartItem keeps the name and price seen when the product was added.
type CartItem struct {
	ProductID int64           `bson:"product_id" json:"product_id"`
	Name      string          `bson:"name" json:"name"`
	ImageURL  string          `bson:"image_url,omitempty" json:"image_url,omitempty"`
	UnitPrice decimal.Decimal `bson:"unit_price" json:"unit_price"`
	Quantity  int             `bson:"quantity" json:"quantity"`
	AddedAt   time.Time       `bson:"added_at" json:"added_at"`
}

func (i CartItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i CartItem) LineItem() LineItem {
	return LineItem{
		ProductID: i.ProductID,
		Name:      i.Name,
		ImageURL:  i.ImageURL,
		Quantity:  i.Quantity,
		UnitPrice: i.UnitPrice,
	}
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

func (c *Cart) Item(productID int64) (CartItem, bool) {
	if c == nil {
		return CartItem{}, false
	}
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return CartItem{}, false
}

func (c *Cart) LineItems() []LineItem {
	if c == nil {
		return nil
	}
	lines := make([]LineItem, 0, len(c.Items))
	for _, it := range c.Items {
		lines = append(lines, it.LineItem())
	}
	return lines
}

// ValidQuantity reports whether q is an allowed line quantity.
func ValidQuantity(q int) bool {
	return q >= MinItemQuantity && q <= MaxItemQuantity
}
