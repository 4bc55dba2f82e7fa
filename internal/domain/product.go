package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// ID is a product identifier. Stored data carries both numeric and string ids,
// so it decodes from either and always encodes as a string.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// NewProductID returns a millisecond timestamp id.
func NewProductID(now time.Time) ID {
	return ID(strconv.FormatInt(now.UnixMilli(), 10))
}

type Product struct {
	ID          ID       `json:"id"`
	Name        string   `json:"name"`
	Slug        string   `json:"slug,omitempty"`
	Price       float64  `json:"price"`
	Category    string   `json:"category"`
	Stock       int      `json:"stock"`
	Description string   `json:"description,omitempty"`
	Image       string   `json:"image"`
	Location    string   `json:"location,omitempty"`
	ExpiryDate  string   `json:"expiryDate,omitempty"`
	IsPosted    bool     `json:"isPosted,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	SellerID    string   `json:"sellerId,omitempty"`
}

// DateLayout is the YYYY-MM-DD form used for expiry and order dates.
const DateLayout = "2006-01-02"
