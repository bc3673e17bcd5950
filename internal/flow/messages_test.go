package flow

import (
	"errors"
	"fmt"
	"testing"

	"github.com/eventlodge/accommodation-backend/pkg/apiclient"
	"github.com/stretchr/testify/assert"
)

func TestUserMessage_NeverEchoesServerText(t *testing.T) {
	raw := []*apiclient.APIError{
		{StatusCode: 400, Message: "Bad Request"},
		{StatusCode: 401, Message: "Unauthorized"},
		{StatusCode: 403, Message: "Forbidden"},
		{StatusCode: 404, Message: "Not Found"},
		{StatusCode: 500, Message: "Internal Server Error"},
		{StatusCode: 502, Code: "gateway_error", Message: "Bad Gateway"},
	}
	for _, apiErr := range raw {
		t.Run(apiErr.Message, func(t *testing.T) {
			msg := UserMessage(apiErr)
			assert.NotEmpty(t, msg)
			assert.NotContains(t, msg, apiErr.Message)
		})
	}
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "Pairing codes are exactly 5 digits.", UserMessage(ErrInvalidPairingCode))
	assert.Contains(t, UserMessage(fmt.Errorf("wrapped: %w", ErrIncompleteSelection)), "choose")
	assert.Contains(t, UserMessage(&apiclient.APIError{Code: apiclient.CodeTimeout}), "too long")
	assert.Contains(t, UserMessage(&apiclient.APIError{Code: apiclient.CodeNetwork}), "reach the server")
	assert.Contains(t, UserMessage(&apiclient.APIError{StatusCode: 401}), "sign in")
	assert.Contains(t, UserMessage(&apiclient.APIError{StatusCode: 409}), "taken")
	assert.Equal(t, "Something went wrong. Please try again.", UserMessage(errors.New("boom")))
}
