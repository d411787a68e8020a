package validators

import (
	"safeher/internal/models"
)

type CoordinateRequest struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
	Accuracy  float64 `json:"accuracy" validate:"min=0"`
}

func ValidateContactInput(input *models.ContactInput) ValidationErrors {
	return ValidateStruct(input)
}

func ValidateCoordinate(c models.Coordinate) ValidationErrors {
	return ValidateStruct(&CoordinateRequest{
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
		Accuracy:  c.Accuracy,
	})
}
