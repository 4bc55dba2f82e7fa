package domain

import "github.com/shopspring/decimal"

type CartItem struct {
	ID       ID      `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Image    string  `json:"image"`
}

type Cart struct {
	OwnerID string     `json:"ownerId,omitempty"`
	Items   []CartItem `json:"items"`
}

func (c Cart) Total() float64 {
	sum := decimal.Zero
	for _, it := range c.Items {
		sum = sum.Add(LineTotal(it.Price, it.Quantity))
	}
	return Round2(sum)
}

func (c Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}
