// ABOUTME: Account and messaging commands for the coven-chat CLI
// ABOUTME: Each command works against the store.Store interface and the saved login session

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/2389/coven-chat/internal/session"
	"github.com/2389/coven-chat/internal/store"
)

var (
	errNotLoggedIn      = errors.New("not logged in; run: coven-chat login <user>")
	errSessionsDisabled = errors.New("session.secret is not configured; run: coven-chat init")
)

type commandFunc func(a *app, ctx context.Context, args []string) error

var commands = map[string]commandFunc{
	"register": (*app).register,
	"login":    (*app).login,
	"logout":   (*app).logout,
	"whoami":   (*app).whoami,
	"users":    (*app).users,
	"send":     (*app).send,
	"history":  (*app).history,
	"photo":    (*app).photo,
}

// app carries what every command needs.
type app struct {
	store    store.Store
	sessions *session.Manager // nil when no secret is configured
	in       *bufio.Reader
	tty      *os.File // set when input is an interactive terminal
	out      io.Writer
	logger   *slog.Logger
}

func newApp(st store.Store, in io.Reader, out io.Writer, logger *slog.Logger) *app {
	a := &app{
		store:  st,
		in:     bufio.NewReader(in),
		out:    out,
		logger: logger,
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		a.tty = f
	}
	return a
}

func (a *app) dispatch(ctx context.Context, command string, args []string) error {
	fn, ok := commands[command]
	if !ok {
		return fmt.Errorf("unknown command: %s", command)
	}
	return fn(a, ctx, args)
}

// currentUser returns the username of the saved session.
func (a *app) currentUser() (string, error) {
	if a.sessions == nil {
		return "", errSessionsDisabled
	}
	claims, err := a.sessions.Current()
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return "", errNotLoggedIn
		}
		if errors.Is(err, session.ErrExpiredToken) {
			return "", fmt.Errorf("%w; run: coven-chat login <user>", err)
		}
		return "", err
	}
	return claims.Username(), nil
}

// readPassword prompts for a password, hiding input on a terminal.
func (a *app) readPassword(label string) (string, error) {
	fmt.Fprintf(a.out, "%s: ", label)

	if a.tty != nil {
		b, err := term.ReadPassword(int(a.tty.Fd()))
		fmt.Fprintln(a.out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}

	line, err := a.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *app) register(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: coven-chat register <user> [password]")
	}

	username := args[0]
	var password string
	if len(args) == 2 {
		password = args[1]
	} else {
		var err error
		if password, err = a.readPassword("Password"); err != nil {
			return err
		}
		confirm, err := a.readPassword("Confirm password")
		if err != nil {
			return err
		}
		if confirm != password {
			return fmt.Errorf("passwords do not match")
		}
	}

	acct, err := a.store.Register(ctx, username, password)
	if err != nil {
		return fmt.Errorf("registering %s: %w", username, err)
	}

	a.logger.Debug("account registered", "username", acct.Username, "id", acct.ID)
	color.New(color.FgGreen).Fprint(a.out, "✓ ")
	fmt.Fprintf(a.out, "Registered %s (id %d)\n", acct.Username, acct.ID)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: coven-chat login <user> [password]")
	}
	if a.sessions == nil {
		return errSessionsDisabled
	}

	username := args[0]
	var password string
	if len(args) == 2 {
		password = args[1]
	} else {
		var err error
		if password, err = a.readPassword("Password"); err != nil {
			return err
		}
	}

	acct, err := a.store.Authenticate(ctx, username, password)
	if err != nil {
		return err
	}

	claims, err := a.sessions.Login(acct.Username)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	a.logger.Debug("logged in", "username", acct.Username, "expires", claims.ExpiresAt.Time)
	color.New(color.FgGreen).Fprint(a.out, "✓ ")
	fmt.Fprintf(a.out, "Logged in as %s\n", acct.Username)
	return nil
}

func (a *app) logout(_ context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: coven-chat logout")
	}
	if a.sessions == nil {
		return errSessionsDisabled
	}
	if err := a.sessions.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *app) whoami(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: coven-chat whoami")
	}
	me, err := a.currentUser()
	if err != nil {
		return err
	}

	acct, err := a.store.GetAccount(ctx, me)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", me, err)
	}

	fmt.Fprintf(a.out, "%s %s\n", color.CyanString(acct.Username), photoLabel(acct.Photo))
	return nil
}

func (a *app) users(ctx context.Context, args []string) error {
	order := store.OrderByID
	for i := 0; i < len(args); i++ {
		arg := args[i]
		var value string
		switch {
		case arg == "--sort":
			if i+1 >= len(args) {
				return fmt.Errorf("--sort requires a value")
			}
			value = args[i+1]
			i++
		case strings.HasPrefix(arg, "--sort="):
			value = strings.TrimPrefix(arg, "--sort=")
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}

		switch value {
		case "id":
			order = store.OrderByID
		case "name":
			order = store.OrderByUsername
		default:
			return fmt.Errorf("--sort must be id or name, got %q", value)
		}
	}

	me, err := a.currentUser()
	if err != nil {
		return err
	}

	others, err := a.store.ListOthers(ctx, me, order)
	if err != nil {
		return err
	}

	if len(others) == 0 {
		fmt.Fprintln(a.out, "No other users yet")
		return nil
	}
	for _, u := range others {
		fmt.Fprintf(a.out, "%4d  %-20s %s\n", u.ID, u.Username, photoLabel(u.Photo))
	}
	return nil
}

func (a *app) send(ctx context.Context, args []string) error {
	var (
		positional []string
		image      *string
	)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--image" || arg == "-i":
			if i+1 >= len(args) {
				return fmt.Errorf("--image requires a value")
			}
			v := args[i+1]
			image = &v
			i++
		case strings.HasPrefix(arg, "--image="):
			v := strings.TrimPrefix(arg, "--image=")
			image = &v
		case arg == "--":
			positional = append(positional, args[i+1:]...)
			i = len(args)
		case strings.HasPrefix(arg, "-") && arg != "-":
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			positional = append(positional, arg)
		}
	}

	if len(positional) < 1 {
		return fmt.Errorf("usage: coven-chat send <to> [text] [--image <uri>]")
	}

	to := positional[0]
	var text *string
	if len(positional) > 1 {
		joined := strings.Join(positional[1:], " ")
		text = &joined
	}

	me, err := a.currentUser()
	if err != nil {
		return err
	}

	msg, err := a.store.Send(ctx, me, to, text, image)
	if err != nil {
		return fmt.Errorf("sending to %s: %w", to, err)
	}

	a.logger.Debug("message sent", "id", msg.ID, "sender", msg.Sender, "receiver", msg.Receiver)
	color.New(color.FgGreen).Fprint(a.out, "✓ ")
	fmt.Fprintf(a.out, "Sent #%d to %s\n", msg.ID, msg.Receiver)
	return nil
}

func (a *app) history(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: coven-chat history <with>")
	}
	with := args[0]

	me, err := a.currentUser()
	if err != nil {
		return err
	}

	peer, err := a.store.GetAccount(ctx, with)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", with, err)
	}
	self, err := a.store.GetAccount(ctx, me)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", me, err)
	}

	msgs, err := a.store.Conversation(ctx, me, with)
	if err != nil {
		return err
	}

	gray := color.New(color.FgHiBlack)
	gray.Fprintf(a.out, "%s %s  <->  %s %s\n\n",
		self.Username, photoLabel(self.Photo), peer.Username, photoLabel(peer.Photo))

	if len(msgs) == 0 {
		fmt.Fprintln(a.out, "No messages yet")
		return nil
	}

	for _, m := range msgs {
		fmt.Fprintln(a.out, formatMessage(m, me))
	}
	return nil
}

func (a *app) photo(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "set" {
		if len(args) != 2 {
			return fmt.Errorf("usage: coven-chat photo set <uri>")
		}
		me, err := a.currentUser()
		if err != nil {
			return err
		}
		acct, err := a.store.UpdatePhoto(ctx, me, args[1])
		if err != nil {
			return fmt.Errorf("updating photo: %w", err)
		}
		color.New(color.FgGreen).Fprint(a.out, "✓ ")
		fmt.Fprintf(a.out, "Photo for %s set to %s\n", acct.Username, *acct.Photo)
		return nil
	}

	if len(args) > 1 {
		return fmt.Errorf("usage: coven-chat photo [<user>]")
	}

	var username string
	if len(args) == 1 {
		username = args[0]
	} else {
		me, err := a.currentUser()
		if err != nil {
			return err
		}
		username = me
	}

	p, err := a.store.GetPhoto(ctx, username)
	if err != nil {
		return err
	}
	if p == nil {
		fmt.Fprintf(a.out, "%s has no photo\n", username)
		return nil
	}
	fmt.Fprintln(a.out, *p)
	return nil
}

// formatMessage renders one conversation line from me's point of view.
func formatMessage(m *store.Message, me string) string {
	stamp := m.Timestamp
	if ts, err := store.ParseTimestamp(m.Timestamp); err == nil {
		stamp = ts.Local().Format("2006-01-02 15:04")
	}

	who := color.CyanString(m.Sender)
	if m.Sender == me {
		who = color.GreenString(m.Sender)
	}

	var body []string
	if m.Text != nil {
		body = append(body, *m.Text)
	}
	if m.Image != nil {
		body = append(body, color.MagentaString("[image: %s]", *m.Image))
	}

	return fmt.Sprintf("%s #%d %s: %s",
		color.HiBlackString("[%s]", stamp), m.ID, who, strings.Join(body, " "))
}

func photoLabel(p *string) string {
	if p == nil {
		return color.HiBlackString("(no photo)")
	}
	return color.HiBlackString("(%s)", *p)
}

// describeError turns store and session failures into messages a person at
// the terminal can act on.
func describeError(err error) string {
	switch {
	case errors.Is(err, store.ErrDuplicateUsername):
		return "that username is already taken"
	case errors.Is(err, store.ErrInvalidCredentials):
		return "invalid username or password"
	case errors.Is(err, store.ErrEmptyContent):
		return "a message needs text, an --image, or both"
	case errors.Is(err, store.ErrSchemaTooNew):
		return fmt.Sprintf("%v; upgrade coven-chat to open this database", err)
	case errors.Is(err, store.ErrSchemaCorruption):
		return fmt.Sprintf("%v; the database file may be damaged", err)
	default:
		return err.Error()
	}
}
