package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/eventlodge/accommodation-backend/internal/config"
	"github.com/eventlodge/accommodation-backend/internal/flow"
	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/eventlodge/accommodation-backend/internal/storage"
	"github.com/eventlodge/accommodation-backend/pkg/apiclient"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const usage = `usage: booker <command> [flags]

commands:
  catalog   list facilities, rooms and beds for an event
  book      reserve a unit and allocate it to a registration
  allocate  retry linking a reserved booking whose allocation failed
  pay       start a checkout and print the page to open
  callback  reconcile the URL the browser returned to after checkout
  resume    show where the last session stopped`

// printNavigator stands in for a browser: it prints where to go next
type printNavigator struct{}

func (printNavigator) Navigate(_ context.Context, target string) error {
	fmt.Printf("Open: %s\n", target)
	return nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)

	cfg, err := config.LoadClient()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	kv, err := storage.Open(cfg)
	if err != nil {
		logger.Fatalf("Failed to open state backend: %v", err)
	}

	api := apiclient.NewClient(cfg.Client.APIBaseURL, cfg.Client.AccessToken, cfg.Client.RequestTimeout)
	session := flow.NewSession(api, kv, printNavigator{}, flow.SessionConfig{
		SessionID:       cfg.Client.SessionID,
		RedirectURL:     cfg.Client.RedirectURL,
		NotificationURL: cfg.Client.NotificationURL,
		DashboardURL:    cfg.Client.DashboardURL,
		PairingDelay:    cfg.Client.PairingDelay,
		CallbackDelay:   cfg.Client.CallbackDelay,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := os.Args[2:]
	switch os.Args[1] {
	case "catalog":
		err = runCatalog(ctx, session, args)
	case "book":
		err = runBook(ctx, session, args)
	case "allocate":
		err = runAllocate(ctx, session, args)
	case "pay":
		err = runPay(ctx, session, args)
	case "callback":
		err = runCallback(ctx, session, args)
	case "resume":
		err = runResume(ctx, session)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, flow.UserMessage(err))
		var partial *flow.PartialFailureError
		if errors.As(err, &partial) && partial.Booking != nil {
			fmt.Fprintf(os.Stderr, "Retry with: booker allocate -booking %s\n", partial.Booking.ID)
		}
		logger.WithError(err).Debug("Command failed")
		os.Exit(1)
	}
}

func runCatalog(ctx context.Context, session *flow.Session, args []string) error {
	fs := flag.NewFlagSet("catalog", flag.ExitOnError)
	eventFlag := fs.String("event", "", "event id")
	kindFlag := fs.String("kind", "HOSTEL", "HOSTEL or HOTEL")
	_ = fs.Parse(args)

	eventID, err := uuid.Parse(*eventFlag)
	if err != nil {
		return fmt.Errorf("invalid -event: %w", err)
	}
	kind, err := models.ParseAccommodationKind(*kindFlag)
	if err != nil {
		return err
	}

	result := session.Catalog().Read(ctx, eventID, kind)
	if result.Status != flow.CatalogReady {
		fmt.Println(result.Message)
		if result.Retryable() {
			return result.Err
		}
		return nil
	}

	sel := flow.NewSelector(kind, result.Facilities)
	for _, facility := range result.Facilities {
		printOption(facilityOption(sel, facility.ID))
		if err := sel.SelectFacility(facility.ID); err != nil {
			continue
		}
		for _, opt := range sel.Options() {
			if opt.Level != flow.LevelFacility {
				printOption(opt)
			}
		}
		sel.Reset()
	}
	return nil
}

func facilityOption(sel *flow.Selector, id uuid.UUID) flow.Option {
	for _, opt := range sel.Options() {
		if opt.Level == flow.LevelFacility && opt.ID == id {
			return opt
		}
	}
	return flow.Option{Level: flow.LevelFacility, ID: id}
}

func printOption(opt flow.Option) {
	indent := ""
	switch opt.Level {
	case flow.LevelRoom:
		indent = "  "
	case flow.LevelBed:
		indent = "    "
	}
	status := fmt.Sprintf("%d left", opt.Remaining)
	if opt.Disabled {
		status = "sold out"
	}
	fmt.Printf("%s%-8s %s  %s  %.2f  (%s)\n", indent, opt.Level, opt.ID, opt.Label, opt.Price, status)
}

func runBook(ctx context.Context, session *flow.Session, args []string) error {
	fs := flag.NewFlagSet("book", flag.ExitOnError)
	eventFlag := fs.String("event", "", "event id")
	kindFlag := fs.String("kind", "HOSTEL", "HOSTEL or HOTEL")
	facilityFlag := fs.String("facility", "", "facility id")
	roomFlag := fs.String("room", "", "room id (hotel)")
	bedFlag := fs.String("bed", "", "bed space id (hostel)")
	registrationFlag := fs.String("registration", "", "registration id")
	userFlag := fs.String("user", "", "user id")
	pricingFlag := fs.String("pricing", string(models.PricingStandard), "pricing category")
	married := fs.Bool("married", false, "attendee is married (enables pairing for hotels)")
	pairingCode := fs.String("pairing-code", "", "spouse's 5-digit pairing code")
	_ = fs.Parse(args)

	kind, err := models.ParseAccommodationKind(*kindFlag)
	if err != nil {
		return err
	}

	req := flow.BookRequest{
		Kind:        kind,
		Pricing:     models.PricingCategory(*pricingFlag),
		Married:     *married,
		PairingCode: strings.TrimSpace(*pairingCode),
	}
	ids := []struct {
		name     string
		value    string
		dst      *uuid.UUID
		optional bool
	}{
		{"event", *eventFlag, &req.EventID, false},
		{"facility", *facilityFlag, &req.FacilityID, false},
		{"registration", *registrationFlag, &req.RegistrationID, false},
		{"user", *userFlag, &req.UserID, false},
		{"room", *roomFlag, &req.RoomID, true},
		{"bed", *bedFlag, &req.BedSpaceID, true},
	}
	for _, id := range ids {
		if id.value == "" && id.optional {
			continue
		}
		parsed, err := uuid.Parse(id.value)
		if err != nil {
			return fmt.Errorf("invalid -%s: %w", id.name, err)
		}
		*id.dst = parsed
	}

	result, err := session.Book(ctx, req)
	if result != nil && result.Reserve.Status != flow.Booked && result.Reserve.Message != "" {
		fmt.Println(result.Reserve.Message)
		for _, opt := range result.Options {
			printOption(opt)
		}
	}
	if err != nil {
		return err
	}
	if result.Reserve.Status != flow.Booked {
		return nil
	}

	booking := result.Reserve.Booking
	fmt.Printf("Booked %s room %s at %.2f (booking %s)\n", booking.FacilityName, booking.RoomNumber, booking.Price, booking.ID)
	if result.Paired {
		fmt.Println("Paired with your spouse's booking.")
	} else if result.Allocation != nil {
		fmt.Printf("Allocation %s is %s. Continue with: booker pay\n", result.Allocation.AllocationID, result.Allocation.Status)
	}
	return nil
}

func runAllocate(ctx context.Context, session *flow.Session, args []string) error {
	fs := flag.NewFlagSet("allocate", flag.ExitOnError)
	bookingFlag := fs.String("booking", "", "booking id printed by the failed book run")
	_ = fs.Parse(args)

	unlinked, ok := session.UnlinkedBooking(ctx)
	if !ok {
		fmt.Println("No reserved booking is waiting to be linked.")
		return nil
	}
	if *bookingFlag != "" {
		bookingID, err := uuid.Parse(*bookingFlag)
		if err != nil {
			return fmt.Errorf("invalid -booking: %w", err)
		}
		if bookingID != unlinked.Booking.ID {
			return fmt.Errorf("booking %s is not the one waiting to be linked (%s)", bookingID, unlinked.Booking.ID)
		}
	}

	result, err := session.RetryAllocation(ctx, unlinked.Context(), flow.TargetFor(unlinked.Booking.Kind))
	if err != nil {
		return err
	}
	fmt.Printf("Allocation %s is %s. Continue with: booker pay\n", result.AllocationID, result.Status)
	return nil
}

func runPay(ctx context.Context, session *flow.Session, args []string) error {
	fs := flag.NewFlagSet("pay", flag.ExitOnError)
	eventFlag := fs.String("event", "", "event id")
	userFlag := fs.String("user", "", "user id")
	amount := fs.Float64("amount", 0, "amount to charge")
	kindFlag := fs.String("kind", string(flow.PaymentKindRegistration), "registration or dependents")
	targetsFlag := fs.String("targets", "", "comma separated registration or dependent ids")
	_ = fs.Parse(args)

	eventID, err := uuid.Parse(*eventFlag)
	if err != nil {
		return fmt.Errorf("invalid -event: %w", err)
	}
	userID, err := uuid.Parse(*userFlag)
	if err != nil {
		return fmt.Errorf("invalid -user: %w", err)
	}

	var targets []uuid.UUID
	for _, raw := range strings.Split(*targetsFlag, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid target %q: %w", raw, err)
		}
		targets = append(targets, id)
	}

	// Navigation to checkout is the last thing this process does
	_, err = session.Pay(ctx, flow.PaymentRequest{
		Amount:    *amount,
		UserID:    userID,
		EventID:   eventID,
		Kind:      flow.PaymentKind(*kindFlag),
		TargetIDs: targets,
	})
	return err
}

func runCallback(ctx context.Context, session *flow.Session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("callback takes exactly one return URL")
	}

	result, err := session.HandleReturn(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Println(result.Message)
	if !result.AutoNavigated && result.DashboardLink != "" {
		fmt.Printf("Dashboard: %s\n", result.DashboardLink)
	}
	return nil
}

func runResume(ctx context.Context, session *flow.Session) error {
	point := session.Resume(ctx)
	if !point.ShouldResume() {
		fmt.Println("Nothing to resume.")
	} else {
		fmt.Printf("Resume at %s", point.Flow.View)
		if point.Flow.PaymentStatus != "" {
			fmt.Printf(" (payment %s)", point.Flow.PaymentStatus)
		}
		fmt.Println()
	}

	for _, p := range point.Pending {
		fmt.Printf("Pending payment %s: %s %.2f started %s\n", p.Reference, p.Kind, p.Amount, p.StartedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
