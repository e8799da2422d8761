package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"shared-tasks-backend/internal/client"
)

const DefaultPassword = "Test1234"

// ErrAborted marks a scenario that stopped before its last step.
var ErrAborted = errors.New("scenario aborted")

func abortf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAborted, fmt.Sprintf(format, args...))
}

// Env is what a scenario runs against.
type Env struct {
	API      *client.Client
	Out      *Printer
	Password string

	// Suffix returns n characters unique to this run, used to keep
	// usernames from colliding across runs.
	Suffix func(n int) string
}

func NewEnv(api *client.Client, out *Printer, password string) *Env {
	if password == "" {
		password = DefaultPassword
	}
	return &Env{API: api, Out: out, Password: password, Suffix: uuidSuffix}
}

func uuidSuffix(n int) string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")
	return s[:min(n, len(s))]
}

type Result struct {
	Name   string
	Checks []Check
	Err    error
}

func (r Result) Failed() int {
	n := 0
	for _, c := range r.Checks {
		if !c.OK {
			n++
		}
	}
	return n
}

func (r Result) OK() bool { return r.Err == nil && r.Failed() == 0 }

// Run executes s against env and gathers its checks.
func Run(ctx context.Context, s Scenario, env *Env) Result {
	err := s.Run(ctx, env)
	if err != nil {
		env.Out.Aborted(err)
	}
	return Result{Name: s.Name, Checks: env.Out.Checks(), Err: err}
}

// account is a signed-in user and a client carrying its token.
type account struct {
	client.User
	Token string
	API   *client.Client
}

func (e *Env) register(ctx context.Context, username, first, last string) (account, error) {
	res, err := e.API.Register(ctx, e.registerRequest(username, first, last))
	if err != nil {
		return account{}, abortf("register %s: %s", username, client.MessageOf(err, err.Error()))
	}
	return e.signedIn(res)
}

// registerOrLogin registers username, signing in with the "login" field
// instead when the account already exists from an earlier run.
func (e *Env) registerOrLogin(ctx context.Context, username, first, last string) (account, error) {
	res, err := e.API.Register(ctx, e.registerRequest(username, first, last))
	if err == nil {
		e.Out.Info("Registered %s", username)
		return e.signedIn(res)
	}
	e.Out.Info("Register: %s", client.MessageOf(err, err.Error()))

	res, err = e.API.Login(ctx, client.LoginRequest{Login: username, Password: e.Password})
	if err != nil {
		return account{}, abortf("login %s: %s", username, client.MessageOf(err, err.Error()))
	}
	e.Out.Info("Signed in as existing user %s", username)
	return e.signedIn(res)
}

func (e *Env) registerRequest(username, first, last string) client.RegisterRequest {
	return client.RegisterRequest{
		Username:  username,
		Email:     username + "@example.com",
		Password:  e.Password,
		FirstName: first,
		LastName:  last,
	}
}

func (e *Env) signedIn(res client.AuthResult) (account, error) {
	if res.Token == "" {
		return account{}, abortf("no token returned for %s", res.User.Username)
	}
	return account{User: res.User, Token: res.Token, API: e.API.WithToken(res.Token)}, nil
}

func allPermissions(delegateID string) client.DelegationRequest {
	return client.DelegationRequest{
		DelegateID:          delegateID,
		CanCreateTasks:      true,
		CanEditTasks:        true,
		CanDeleteTasks:      true,
		CanCreateCategories: true,
	}
}

func tokenPreview(tok string, n int) string {
	if len(tok) <= n {
		return tok
	}
	return tok[:n] + "..."
}

// printActivity writes one line per entry:
// actor [(you)] action 'title' [for target].
func printActivity(p *Printer, page client.ActivityPage) {
	p.Info("Total entries: %d", page.Pagination.Total)
	for _, l := range page.Logs {
		var b strings.Builder
		b.WriteString("- ")
		b.WriteString(l.Actor.DisplayName())
		if l.IsOwnAction {
			b.WriteString(" (you)")
		}
		fmt.Fprintf(&b, " %s '%s'", l.Action, l.EntityTitle)
		if l.TargetOwner != nil {
			b.WriteString(" for " + l.TargetOwner.DisplayName())
		}
		p.Info("%s", b.String())
	}
}
