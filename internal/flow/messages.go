package flow

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/eventlodge/accommodation-backend/pkg/apiclient"
	"github.com/eventlodge/accommodation-backend/pkg/validator"
)

// UserMessage turns any error from the flow into copy that can be shown to
// an attendee. Raw server strings are never passed through.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, validator.ErrInvalidPairingCode):
		return "Pairing codes are exactly 5 digits."
	case errors.Is(err, ErrIncompleteSelection):
		return "Please choose where you want to stay before continuing."
	case errors.Is(err, ErrOptionDisabled):
		return "That option is fully booked. Please choose another."
	case errors.Is(err, ErrUnknownOption):
		return "That option is no longer listed. Please refresh and choose again."
	case errors.Is(err, ErrInvalidPaymentRequest):
		return "The payment details are incomplete. Please go back and try again."
	}

	var partial *PartialFailureError
	if errors.As(err, &partial) {
		if partial.Booking != nil {
			return fmt.Sprintf("Your accommodation is reserved (booking %s) but could not be linked to your registration yet. Please retry linking it.", partial.Booking.ID)
		}
		return "Your accommodation is reserved but could not be linked to your registration yet. Please retry linking it."
	}

	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		return "Something went wrong. Please try again."
	}
	return apiMessage(apiErr)
}

func apiMessage(apiErr *apiclient.APIError) string {
	if apiErr.StatusCode == 0 {
		if apiErr.Code == apiclient.CodeTimeout {
			return "The server took too long to respond. Please try again."
		}
		return "We couldn't reach the server. Check your connection and try again."
	}

	switch apiErr.Code {
	case "pairing_code_invalid":
		return "That pairing code is not valid or has already been used."
	case "unit_taken":
		return "That option was just taken by someone else. Please choose another."
	case "payment_closed":
		return "This payment has already been completed or closed."
	case "gateway_error":
		return "The payment provider is not responding. Please try again shortly."
	}

	switch {
	case apiErr.StatusCode == http.StatusUnauthorized:
		return "Your session has expired. Please sign in again."
	case apiErr.StatusCode == http.StatusForbidden:
		return "You are not allowed to do that with this account."
	case apiErr.StatusCode == http.StatusNotFound:
		return "We couldn't find that item. It may have been removed."
	case apiErr.StatusCode == http.StatusConflict:
		return "That option was just taken by someone else. Please choose another."
	case apiErr.StatusCode == http.StatusUnprocessableEntity, apiErr.StatusCode == http.StatusBadRequest:
		return "Some details were not accepted. Please check them and try again."
	case apiErr.StatusCode >= http.StatusInternalServerError:
		return "Something went wrong on our side. Please try again shortly."
	}
	return "Something went wrong. Please try again."
}
