package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/eventlodge/accommodation-backend/pkg/validator"
	"github.com/sirupsen/logrus"
)

// ErrInvalidPairingCode is the local shape failure for a pairing code
var ErrInvalidPairingCode = validator.ErrInvalidPairingCode

// ErrPairingNotOffered is returned for anything but a married hotel registrant
var ErrPairingNotOffered = errors.New("pairing is only offered for hotel bookings of married registrants")

// PairingState is the pairing protocol state
type PairingState int

const (
	PairingIdle PairingState = iota
	PairingCodeEntry
	PairingRedeeming
	PairingConfirmed
	PairingDirectPayment
)

func (s PairingState) String() string {
	switch s {
	case PairingIdle:
		return "idle"
	case PairingCodeEntry:
		return "code_entry"
	case PairingRedeeming:
		return "redeeming"
	case PairingConfirmed:
		return "confirmed"
	case PairingDirectPayment:
		return "direct_payment"
	}
	return "unknown"
}

// CompletionFunc runs once a pairing is confirmed. It is the same path a
// successful direct payment ends in.
type CompletionFunc func(ctx context.Context, result *models.AllocationResult) error

// PairingSession lets a married hotel registrant choose between paying and
// redeeming a spouse's code. Neither choice touches the selection or catalog.
type PairingSession struct {
	dispatcher *Dispatcher
	actx       AllocationContext
	state      PairingState
	inlineErr  string
	delay      time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	complete   CompletionFunc
	logger     *logrus.Logger
}

// PairingOffered reports whether the pairing choice applies
func PairingOffered(kind models.AccommodationKind, married bool) bool {
	return kind == models.AccommodationHotel && married
}

// NewPairingSession starts in Idle
func NewPairingSession(dispatcher *Dispatcher, actx AllocationContext, married bool, delay time.Duration, complete CompletionFunc, logger *logrus.Logger) (*PairingSession, error) {
	if actx.Booking == nil {
		return nil, ErrNoBooking
	}
	if !PairingOffered(actx.Booking.Kind, married) {
		return nil, ErrPairingNotOffered
	}
	return &PairingSession{
		dispatcher: dispatcher,
		actx:       actx,
		delay:      delay,
		sleep:      sleepContext,
		complete:   complete,
		logger:     logger,
	}, nil
}

// State returns the current state
func (p *PairingSession) State() PairingState {
	return p.state
}

// InlineError is the message to show next to the code input, if any
func (p *PairingSession) InlineError() string {
	return p.inlineErr
}

// ChooseCode moves to code entry
func (p *PairingSession) ChooseCode() error {
	switch p.state {
	case PairingIdle, PairingCodeEntry, PairingDirectPayment:
		p.state = PairingCodeEntry
		return nil
	}
	return fmt.Errorf("cannot enter a code while %s", p.state)
}

// ChooseDirectPayment skips pairing. Payment itself is the caller's next step.
func (p *PairingSession) ChooseDirectPayment() error {
	switch p.state {
	case PairingIdle, PairingCodeEntry, PairingDirectPayment:
		p.state = PairingDirectPayment
		p.inlineErr = ""
		return nil
	}
	return fmt.Errorf("cannot switch to payment while %s", p.state)
}

// Submit checks the code shape locally, then redeems it. A shape failure
// makes no call. A rejection returns to code entry with an inline error.
// On success the session waits the confirmation delay and runs completion.
func (p *PairingSession) Submit(ctx context.Context, code string) (*models.AllocationResult, error) {
	if p.state != PairingCodeEntry {
		return nil, fmt.Errorf("cannot submit a code while %s", p.state)
	}
	if err := validator.ValidatePairingCode(code); err != nil {
		p.inlineErr = UserMessage(err)
		return nil, err
	}

	p.state = PairingRedeeming
	p.inlineErr = ""

	result, err := p.dispatcher.Allocate(ctx, p.actx, PairingTarget{Code: code})
	if err != nil {
		p.state = PairingCodeEntry
		p.inlineErr = pairingMessage(err)
		return nil, err
	}

	p.state = PairingConfirmed
	p.logger.WithFields(logrus.Fields{
		"allocation_id": result.AllocationID,
		"booking_id":    p.actx.Booking.ID,
	}).Info("Pairing code redeemed")

	if err := p.sleep(ctx, p.delay); err != nil {
		return result, err
	}
	if p.complete != nil {
		if err := p.complete(ctx, result); err != nil {
			return result, err
		}
	}
	return result, nil
}

func pairingMessage(err error) string {
	var partial *PartialFailureError
	if errors.As(err, &partial) {
		return UserMessage(partial.Err)
	}
	return UserMessage(err)
}
