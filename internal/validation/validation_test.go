package validation

import (
	"errors"
	"testing"

	"github.com/fjod/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Age      int    `json:"age" validate:"gte=18"`
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(signup{Email: "a@b.co", Password: "secret", Age: 30}))
}

func TestStruct_ReportsEveryField(t *testing.T) {
	err := Struct(signup{Email: "nope", Password: "abc", Age: 3})

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string]string{
		"email":    "Invalid email format",
		"password": "Must be at least 6 characters",
		"age":      "Must be greater than or equal to 18",
	}, verr.Fields)
	assert.Contains(t, err.Error(), "email: Invalid email format")
}

func TestStruct_ShippingAddressBlankFields(t *testing.T) {
	err := Struct(domain.ShippingAddress{
		Address:    "1 Main St",
		City:       "   ",
		PostalCode: "",
		Country:    "NL",
		Phone:      "",
	})

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Fields, 3)
	assert.Equal(t, "This field is required", verr.Fields["city"])
	assert.Contains(t, verr.Fields, "postal_code")
	assert.Contains(t, verr.Fields, "phone")
}

func TestStruct_NestedPath(t *testing.T) {
	type request struct {
		Address domain.ShippingAddress `json:"shipping_address"`
	}
	err := Struct(request{Address: domain.ShippingAddress{Address: "x", City: "y", PostalCode: "z", Country: "w"}})

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string]string{"shipping_address.phone": "This field is required"}, verr.Fields)
}

func TestNewError(t *testing.T) {
	err := NewError("quantity", "Must be at least 1")
	assert.Equal(t, "validation failed: quantity: Must be at least 1", err.Error())
}
