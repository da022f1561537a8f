package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGatewayError(t *testing.T) {
	err := error(&GatewayError{Op: "verify", StatusCode: 400, Message: "Transaction reference not found"})
	assert.Equal(t, "payment gateway verify: 400 Transaction reference not found", err.Error())

	wrapped := &GatewayError{Op: "initialize", Message: "timeout", Err: context.DeadlineExceeded}
	assert.True(t, errors.Is(wrapped, context.DeadlineExceeded))
	assert.Equal(t, "payment gateway initialize: timeout", wrapped.Error())
}
