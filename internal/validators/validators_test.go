package validators

import (
	"testing"

	"safeher/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactInputRequiresNameAndPhone(t *testing.T) {
	errs := ValidateContactInput(&models.ContactInput{Name: "  ", Phone: ""})
	require.Len(t, errs, 2)

	fields := errs.Fields()
	assert.Equal(t, "name is required", fields["name"])
	assert.Equal(t, "phone is required", fields["phone"])
}

func TestContactInputAcceptsLocalNumbers(t *testing.T) {
	for _, phone := range []string{"112", "555-0100", "+1 (555) 010-0100", "181"} {
		assert.Nil(t, ValidateContactInput(&models.ContactInput{Name: "x", Phone: phone}), phone)
	}
}

func TestContactInputRejectsBadValues(t *testing.T) {
	errs := ValidateContactInput(&models.ContactInput{Name: "Jane", Phone: "call me", Email: "jane@"})
	fields := errs.Fields()
	assert.Equal(t, "Invalid phone number format", fields["phone"])
	assert.Equal(t, "Invalid email format", fields["email"])

	errs = ValidateContactInput(&models.ContactInput{Name: "Jane", Phone: "() -"})
	assert.Contains(t, errs.Fields(), "phone")
}

func TestValidateCoordinate(t *testing.T) {
	assert.Nil(t, ValidateCoordinate(models.Coordinate{Latitude: -90, Longitude: 180}))

	errs := ValidateCoordinate(models.Coordinate{Latitude: 90.5, Longitude: -181, Accuracy: -1})
	fields := errs.Fields()
	assert.Contains(t, fields, "latitude")
	assert.Contains(t, fields, "longitude")
	assert.Contains(t, fields, "accuracy")
	assert.Contains(t, errs.Error(), "latitude:")
}
