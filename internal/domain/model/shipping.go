package model

import (
	"strings"

	"telegram-order-bot/internal/domain"
)

// ShippingMethod identifies one delivery option from China.
type ShippingMethod string

const (
	ShippingTruck   ShippingMethod = "truck"
	ShippingAir     ShippingMethod = "air"
	ShippingExpress ShippingMethod = "express"
)

// ShippingOption describes a delivery method as shown to the customer.
// PricePerKg is in RUB; Days is a human range such as "12-15".
type ShippingOption struct {
	Code       ShippingMethod `json:"code" yaml:"code"`
	Name       string         `json:"name" yaml:"name"`
	PricePerKg int64          `json:"price_per_kg" yaml:"price_per_kg"`
	Days       string         `json:"days" yaml:"days"`
}

// IsFree reports whether the option has no per-kg charge.
func (o ShippingOption) IsFree() bool { return o.PricePerKg == 0 }

// ShippingCatalog is an ordered set of shipping options.
type ShippingCatalog struct {
	options []ShippingOption
	byCode  map[ShippingMethod]ShippingOption
}

// DefaultShippingOptions returns the built-in options in display order.
func DefaultShippingOptions() []ShippingOption {
	return []ShippingOption{
		{Code: ShippingTruck, Name: "🚚 Грузовик (бесплатно)", PricePerKg: 0, Days: "18-21"},
		{Code: ShippingAir, Name: "✈️ Авиа", PricePerKg: 1300, Days: "12-15"},
		{Code: ShippingExpress, Name: "⚡️ Экспресс", PricePerKg: 2500, Days: "1-5"},
	}
}

// NewShippingCatalog builds a catalog; duplicate or empty codes are rejected.
func NewShippingCatalog(opts []ShippingOption) (*ShippingCatalog, error) {
	if len(opts) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	c := &ShippingCatalog{
		options: make([]ShippingOption, 0, len(opts)),
		byCode:  make(map[ShippingMethod]ShippingOption, len(opts)),
	}
	for _, o := range opts {
		o.Code = ShippingMethod(strings.ToLower(strings.TrimSpace(string(o.Code))))
		if o.Code == "" || o.PricePerKg < 0 {
			return nil, domain.ErrInvalidArgument
		}
		if _, dup := c.byCode[o.Code]; dup {
			return nil, domain.ErrInvalidArgument
		}
		c.options = append(c.options, o)
		c.byCode[o.Code] = o
	}
	return c, nil
}

// MustDefaultCatalog is used by tests and by the app when no override is configured.
func MustDefaultCatalog() *ShippingCatalog {
	c, err := NewShippingCatalog(DefaultShippingOptions())
	if err != nil {
		panic(err)
	}
	return c
}

// Options returns a copy of the options in display order.
func (c *ShippingCatalog) Options() []ShippingOption {
	out := make([]ShippingOption, len(c.options))
	copy(out, c.options)
	return out
}

// Lookup returns the option for code or domain.ErrUnknownShipping.
func (c *ShippingCatalog) Lookup(code ShippingMethod) (ShippingOption, error) {
	o, ok := c.byCode[ShippingMethod(strings.ToLower(strings.TrimSpace(string(code))))]
	if !ok {
		return ShippingOption{}, domain.ErrUnknownShipping
	}
	return o, nil
}
