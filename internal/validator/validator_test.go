package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type address struct {
	Street string `json:"street" validate:"required,max=10"`
	City   string `json:"city" validate:"required"`
}

type registerRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	Name     string  `json:"name" validate:"notblank"`
	Ship     address `json:"shippingAddress"`
}

func validRequest() registerRequest {
	return registerRequest{
		Email:    "a@example.com",
		Password: "password123",
		Name:     "Ada",
		Ship:     address{Street: "1 Main", City: "Lagos"},
	}
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, New().Validate(validRequest()))
}

func TestValidate_Messages(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *registerRequest)
		want   string
	}{
		{"email", func(r *registerRequest) { r.Email = "nope" }, "email must be a valid email"},
		{"password", func(r *registerRequest) { r.Password = "short" }, "password must be at least 8"},
		{"blank", func(r *registerRequest) { r.Name = "   " }, "name is required"},
		{"nested", func(r *registerRequest) { r.Ship.City = "" }, "shippingAddress.city is required"},
		{"max", func(r *registerRequest) { r.Ship.Street = "a very long street" }, "shippingAddress.street must be at most 10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRequest()
			tt.mutate(&r)
			err := New().Validate(r)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.want, ve.Error())
		})
	}
}
