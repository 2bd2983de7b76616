// Package model defines the domain types shared across the service.
package model

// FilterSet is a named search criteria bundle as persisted in the filter
// store. Rating slices keep the order the user supplied.
type FilterSet struct {
	DPE         []string `json:"dpe" validate:"dive,oneof=A B C D E F G"`
	GES         []string `json:"ges" validate:"dive,oneof=A B C D E F G"`
	SurfaceMin  float64  `json:"surface_min" validate:"gte=0"`
	SurfaceMax  float64  `json:"surface_max" validate:"gtefield=SurfaceMin"`
	PostalCodes []string `json:"postal_codes"`
}

// EnergyRecord is one normalized row from the energy-performance dataset.
// Latitude/Longitude are pointers so a missing coordinate survives
// normalization instead of collapsing to 0,0.
type EnergyRecord struct {
	Address    string   `json:"address"`
	DPE        string   `json:"dpe"`
	GES        string   `json:"ges"`
	Surface    float64  `json:"surface"`
	PostalCode string   `json:"postal_code"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
}

// HasCoordinates reports whether the record can be placed on a map.
func (r EnergyRecord) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// SalePrice is the result of a sale-price lookup. Available is false when the
// upstream had no matching transaction or the call failed.
type SalePrice struct {
	Amount    float64 `json:"amount"`
	Available bool    `json:"available"`
}

// NoSalePrice is the "not available" sentinel.
func NoSalePrice() SalePrice {
	return SalePrice{}
}
