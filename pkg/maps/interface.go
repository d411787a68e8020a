package maps

import "context"

type MapsProvider interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (*GeocodeResponse, error)
}

type GeocodeResponse struct {
	Results []GeocodeResult `json:"results"`
}

type GeocodeResult struct {
	PlaceID     string   `json:"place_id"`
	Address     string   `json:"formatted_address"`
	Coordinates Location `json:"geometry"`
	Types       []string `json:"types"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// FirstAddress returns the best formatted address, or "" when there is none.
func (r *GeocodeResponse) FirstAddress() string {
	if r == nil {
		return ""
	}
	for _, res := range r.Results {
		if res.Address != "" {
			return res.Address
		}
	}
	return ""
}
