package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/s-rangarajan/festicart/internal/api"
	"github.com/s-rangarajan/festicart/internal/cart"
	"github.com/s-rangarajan/festicart/internal/checkout"
	"github.com/s-rangarajan/festicart/internal/scan"
	"github.com/s-rangarajan/festicart/internal/server"
	"github.com/s-rangarajan/festicart/internal/tickets"
)

var shutdownTimeout = 5 * time.Second

var errUsage = errors.New("usage")

func usage(w io.Writer) {
	fmt.Fprint(w, `usage: festicart <command> [flags]

commands:
  serve                          expose the cart over HTTP
  events [-day MM-DD]            list events in date order
  add <event-id>                 add an event's first session to the cart
  cart [show|remove ID|set ID N|clear]
  checkout [-method card|wallet]
  tickets [-by-session]          list tickets grouped by event
  scan <code>                    validate a ticket code at the gate
  login -email E -password P
  register -last-name L -first-name F -email E -phone P -password P -confirm P
  logout
  me
  profile [-last-name L] [-first-name F] [-email E] [-phone P]
  password -current P -new P -confirm P
  delete-account -yes
  reviews [-event ID | -all]
  review -ticket ID -event ID -rating N [-comment TEXT]
  moderate approve|reject|delete ID
`)
}

func run(ctx context.Context, a *app, name string, args []string, out io.Writer) error {
	var err error
	switch name {
	case "serve":
		err = a.serve(ctx)
	case "events":
		err = a.events(ctx, args, out)
	case "add":
		err = a.add(ctx, args, out)
	case "cart":
		err = a.cart(ctx, args, out)
	case "checkout":
		err = a.runCheckout(ctx, args, out)
	case "tickets":
		err = a.tickets(ctx, args, out)
	case "scan":
		err = a.scan(ctx, args, out)
	case "login":
		err = a.login(ctx, args, out)
	case "register":
		err = a.register(ctx, args, out)
	case "logout":
		err = a.session.Logout(ctx)
	case "me":
		err = a.me(ctx, out)
	case "profile":
		err = a.profile(ctx, args, out)
	case "password":
		err = a.password(ctx, args, out)
	case "delete-account":
		err = a.deleteAccount(ctx, args, out)
	case "reviews":
		err = a.reviews(ctx, args, out)
	case "review":
		err = a.review(ctx, args, out)
	case "moderate":
		err = a.moderate(ctx, args, out)
	default:
		err = fmt.Errorf("unknown command %q: %w", name, errUsage)
	}
	if errors.Is(err, errUsage) {
		usage(out)
	}
	return err
}

func (a *app) serve(ctx context.Context) error {
	handler := server.New(a.carts, a.checkout, a.session, a.registry, a.log).Router()
	srv := &http.Server{Addr: a.cfg.App.HTTPAddr, Handler: handler}

	errs := make(chan error, 1)
	go func() {
		a.log.Info(a.log.WithField(ctx, "addr", srv.Addr), "listening")
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancelFunc := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelFunc()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *app) events(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	day := fs.String("day", "", "only events playing that day (MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	listings, err := a.catalog.Browse(ctx, *day)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	for _, l := range listings {
		when := "-"
		if l.Session != nil {
			when = strings.TrimSpace(l.Session.Date + " " + l.Session.StartTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", l.Event.ID, when, l.Type, l.Event.Name, l.Event.Price.StringFixed(2))
	}
	return nil
}

func (a *app) add(ctx context.Context, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("add needs an event id: %w", errUsage)
	}
	updated, err := a.catalog.AddEventToCart(ctx, cart.ID(args[0]))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "added, %d ticket(s) in cart\n", updated.Count())
	return nil
}

func (a *app) cart(ctx context.Context, args []string, out io.Writer) error {
	action := "show"
	if len(args) > 0 {
		action = args[0]
	}

	var current cart.Cart
	var err error
	switch action {
	case "show":
		current, err = a.carts.Cart(ctx)
	case "remove":
		if len(args) != 2 {
			return fmt.Errorf("cart remove needs an id: %w", errUsage)
		}
		current, err = a.carts.RemoveItem(ctx, cart.ID(args[1]))
	case "set":
		if len(args) != 3 {
			return fmt.Errorf("cart set needs an id and a quantity: %w", errUsage)
		}
		quantity, convErr := strconv.Atoi(args[2])
		if convErr != nil {
			return fmt.Errorf("quantity %q: %w", args[2], convErr)
		}
		current, err = a.carts.UpdateQuantity(ctx, cart.ID(args[1]), quantity)
	case "clear":
		err = a.carts.Clear(ctx)
		current = cart.NewCart()
	default:
		return fmt.Errorf("unknown cart action %q: %w", action, errUsage)
	}
	if err != nil {
		return err
	}
	printCart(out, current)
	return nil
}

func printCart(out io.Writer, c cart.Cart) {
	if c.IsEmpty() {
		fmt.Fprintln(out, "cart is empty")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, item := range c.Lines() {
		fmt.Fprintf(tw, "%s\t%s\t%s\tx%d\t%s\n", item.ID, item.Name, item.SessionDate, item.Quantity, item.Subtotal().StringFixed(2))
	}
	fmt.Fprintf(tw, "\t\t\t%d\t%s\n", c.Count(), c.Total().StringFixed(2))
	tw.Flush()
}

func (a *app) runCheckout(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	methodName := fs.String("method", "card", "card or wallet")
	if err := fs.Parse(args); err != nil {
		return err
	}
	method, err := checkout.ParsePaymentMethod(*methodName)
	if err != nil {
		return err
	}

	userID, err := a.session.UserID(ctx)
	if err != nil {
		return err
	}
	result, err := a.checkout.Checkout(ctx, userID, method)
	if err != nil {
		if len(result.ReservationIDs) > 0 {
			fmt.Fprintf(out, "already reserved: %s\n", joinIDs(result.ReservationIDs))
		}
		return err
	}
	if result.Free {
		fmt.Fprintf(out, "free reservation(s) %s\n", joinIDs(result.ReservationIDs))
		return nil
	}
	fmt.Fprintf(out, "paid %s, reservation(s) %s\n", result.Total.StringFixed(2), joinIDs(result.ReservationIDs))
	return nil
}

func (a *app) tickets(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tickets", flag.ContinueOnError)
	bySession := fs.Bool("by-session", a.cfg.Scan.GroupBySessionDate, "split events per session date")
	if err := fs.Parse(args); err != nil {
		return err
	}

	userID, err := a.session.UserID(ctx)
	if err != nil {
		return err
	}
	list, err := a.api.TicketsByClient(ctx, userID)
	if err != nil {
		return err
	}

	groups := tickets.GroupByEvent(list, tickets.Options{BySessionDate: *bySession})
	if len(groups) == 0 {
		fmt.Fprintln(out, "no tickets yet")
		return nil
	}
	for _, g := range groups {
		fmt.Fprintf(out, "%s %s: %d ticket(s), %d used\n", g.Name, g.SessionDate, g.Count, g.UsedCount)
		if g.FullyUsed() {
			continue
		}
		payload, err := g.Payload()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  group code: %s\n", payload)
	}
	return nil
}

// centered places a code in the middle of a virtual frame, as an operator
// holding a ticket up to the camera would.
func centered(value string) scan.Detection {
	return scan.Detection{
		Value:       value,
		Box:         scan.Rect{X: 450, Y: 450, Width: 100, Height: 100},
		FrameWidth:  1000,
		FrameHeight: 1000,
	}
}

func (a *app) scan(ctx context.Context, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("scan needs a code: %w", errUsage)
	}
	outcome, handled := a.scanner.OnFrame(ctx, centered(args[0]))
	if !handled {
		return errors.New("scanner busy")
	}
	defer a.scanner.Acknowledge()

	fmt.Fprintln(out, describeOutcome(outcome))
	return nil
}

func describeOutcome(o scan.Outcome) string {
	if o.State != scan.Accepted {
		return "REJECTED: " + o.Message
	}
	line := fmt.Sprintf("ACCEPTED: %d ticket(s)", o.Validated)
	if o.HolderName != "" {
		line += " for " + o.HolderName
	}
	if o.EventName != "" {
		line += " at " + o.EventName
	}
	return line
}

func (a *app) login(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("FESTICART_PASSWORD"), "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	profile, err := a.session.Login(ctx, api.LoginRequest{Email: *email, Password: *password})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "logged in as %s\n", profile.DisplayName())
	return nil
}

func (a *app) register(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	lastName := fs.String("last-name", "", "last name")
	firstName := fs.String("first-name", "", "first name")
	email := fs.String("email", "", "account email")
	phone := fs.String("phone", "", "phone number")
	password := fs.String("password", os.Getenv("FESTICART_PASSWORD"), "account password")
	confirm := fs.String("confirm", "", "password again")
	if err := fs.Parse(args); err != nil {
		return err
	}

	profile, err := a.session.Register(ctx, api.RegisterRequest{
		LastName:             *lastName,
		FirstName:            *firstName,
		Email:                *email,
		Phone:                *phone,
		Password:             *password,
		PasswordConfirmation: *confirm,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "welcome %s\n", profile.DisplayName())
	return nil
}

func (a *app) me(ctx context.Context, out io.Writer) error {
	profile, err := a.session.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s <%s> %s\n", profile.DisplayName(), profile.Email, profile.Phone)
	return nil
}

// profile keeps the cached value of every field left unset.
func (a *app) profile(ctx context.Context, args []string, out io.Writer) error {
	current, _, err := a.session.Profile(ctx)
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	lastName := fs.String("last-name", current.LastName, "last name")
	firstName := fs.String("first-name", current.FirstName, "first name")
	email := fs.String("email", current.Email, "account email")
	phone := fs.String("phone", current.Phone, "phone number")
	if err := fs.Parse(args); err != nil {
		return err
	}

	updated, err := a.session.UpdateProfile(ctx, api.ProfileUpdate{
		LastName:  *lastName,
		FirstName: *firstName,
		Email:     *email,
		Phone:     *phone,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s <%s> %s\n", updated.DisplayName(), updated.Email, updated.Phone)
	return nil
}

func (a *app) password(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("password", flag.ContinueOnError)
	current := fs.String("current", os.Getenv("FESTICART_PASSWORD"), "current password")
	next := fs.String("new", "", "new password")
	confirm := fs.String("confirm", "", "new password again")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.session.ChangePassword(ctx, api.PasswordChange{
		CurrentPassword:         *current,
		NewPassword:             *next,
		NewPasswordConfirmation: *confirm,
	}); err != nil {
		return err
	}
	fmt.Fprintln(out, "password changed")
	return nil
}

func (a *app) deleteAccount(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("delete-account", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "confirm the account should go")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*yes {
		return fmt.Errorf("delete-account needs -yes: %w", errUsage)
	}

	if err := a.session.DeleteAccount(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "account deleted")
	return nil
}

func (a *app) reviews(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("reviews", flag.ContinueOnError)
	event := fs.String("event", "", "only reviews of this event")
	all := fs.Bool("all", false, "every review, moderation included (admin)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var list []api.Review
	var err error
	switch {
	case *all:
		list, err = a.api.AllReviews(ctx)
	case *event != "":
		list, err = a.api.ReviewsByEvent(ctx, cart.ID(*event))
	default:
		userID, idErr := a.session.UserID(ctx)
		if idErr != nil {
			return idErr
		}
		list, err = a.api.ReviewsByClient(ctx, userID)
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	for _, r := range list {
		state := ""
		if *all && !r.Approved {
			state = "pending"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d/5\t%s\t%s\t%s\n", r.ID, r.EventName, r.Rating, r.AuthorName, r.Comment, state)
	}
	return nil
}

func (a *app) review(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("review", flag.ContinueOnError)
	ticket := fs.String("ticket", "", "reviewed ticket id")
	event := fs.String("event", "", "reviewed event id")
	rating := fs.Int("rating", 0, "1 to 5")
	comment := fs.String("comment", "", "optional comment")
	if err := fs.Parse(args); err != nil {
		return err
	}

	created, err := a.api.CreateReview(ctx, api.ReviewRequest{
		TicketID: cart.ID(*ticket),
		EventID:  cart.ID(*event),
		Rating:   *rating,
		Comment:  *comment,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "review %s sent for moderation\n", created.ID)
	return nil
}

var moderations = map[string]func(*api.Client, context.Context, cart.ID) error{
	"approve": (*api.Client).ApproveReview,
	"reject":  (*api.Client).RejectReview,
	"delete":  (*api.Client).DeleteReview,
}

func parseModeration(args []string) (func(*api.Client, context.Context, cart.ID) error, cart.ID, error) {
	if len(args) != 2 || args[1] == "" {
		return nil, "", fmt.Errorf("moderate needs an action and a review id: %w", errUsage)
	}
	action, ok := moderations[args[0]]
	if !ok {
		return nil, "", fmt.Errorf("unknown moderation %q: %w", args[0], errUsage)
	}
	return action, cart.ID(args[1]), nil
}

func (a *app) moderate(ctx context.Context, args []string, out io.Writer) error {
	action, id, err := parseModeration(args)
	if err != nil {
		return err
	}
	if err := action(a.api, ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(out, "review %s: %s done\n", id, args[0])
	return nil
}

func terminalBell(w io.Writer) scan.HapticsFunc {
	return func(time.Duration) {
		fmt.Fprint(w, "\a")
	}
}

func joinIDs(ids []cart.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ", ")
}
