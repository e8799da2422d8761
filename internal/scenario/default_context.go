package scenario

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"shared-tasks-backend/internal/client"
)

func init() {
	register(Scenario{
		Name:     "default-context",
		Synopsis: "delegate sets, reads back and resets its default task context",
		Run:      defaultContext,
	})
}

func defaultContext(ctx context.Context, env *Env) error {
	p := env.Out
	p.Title("Default context")

	id := env.Suffix(6)
	ownerName, delegateName := "owner_"+id, "delegate_"+id

	p.Step(1, fmt.Sprintf("Registering Owner (%s)...", ownerName))
	owner, err := env.register(ctx, ownerName, "Owner", "Test")
	if err != nil {
		return err
	}
	p.Info("ID: %s", owner.ID)

	p.Step(2, fmt.Sprintf("Registering Delegate (%s)...", delegateName))
	delegate, err := env.register(ctx, delegateName, "Delegate", "Test")
	if err != nil {
		return err
	}
	p.Info("ID: %s", delegate.ID)
	p.Info("Initial defaultContext: %s", orMissing(delegate.DefaultContext))
	p.Check("initial default context is self", delegate.DefaultContext == "self", delegate.DefaultContext)

	p.Step(3, "Owner invites Delegate...")
	d, err := owner.API.CreateDelegation(ctx, allPermissions(delegate.ID))
	if err != nil {
		return abortf("invite: %v", err)
	}

	p.Step(4, "Delegate accepts...")
	d, err = delegate.API.AcceptDelegation(ctx, d.ID)
	if err != nil {
		return abortf("accept: %v", err)
	}
	p.Info("Status: %s", d.Status)

	p.Step(5, "Delegate makes Owner's tasks the default...")
	u, err := delegate.API.SetDefaultContext(ctx, owner.ID)
	p.Info("Status: %d", statusOf(err, http.StatusOK))
	if err != nil {
		p.Info("Error: %s", client.MessageOf(err, err.Error()))
	} else {
		p.Info("New defaultContext: %s", u.DefaultContext)
	}
	p.Check("default context set to owner", err == nil && u.DefaultContext == owner.ID, u.DefaultContext)

	p.Step(6, "Delegate logs in again to check...")
	res, err := env.API.Login(ctx, client.LoginRequest{Identifier: delegateName, Password: env.Password})
	if err != nil {
		return abortf("login: %s", client.MessageOf(err, err.Error()))
	}
	p.Info("defaultContext at login: %s", orMissing(res.User.DefaultContext))
	p.Info("Expected: %s", owner.ID)
	p.Info("Match: %t", res.User.DefaultContext == owner.ID)
	p.Check("login returns the stored default context", res.User.DefaultContext == owner.ID, res.User.DefaultContext)

	p.Step(7, "Delegate resets the default to 'self'...")
	u, err = delegate.API.SetDefaultContext(ctx, "self")
	if err != nil {
		p.Info("Error: %s", client.MessageOf(err, err.Error()))
	} else {
		p.Info("New defaultContext: %s", u.DefaultContext)
	}
	p.Check("default context reset to self", err == nil && u.DefaultContext == "self", u.DefaultContext)

	p.Step(8, "Trying an invalid context (random UUID)...")
	_, err = delegate.API.SetDefaultContext(ctx, uuid.NewString())
	status := statusOf(err, http.StatusOK)
	p.Info("Status: %d", status)
	p.Info("Expected error: %s", client.MessageOf(err, "none"))
	p.Check("invalid context is rejected", status == http.StatusBadRequest, fmt.Sprint(status))

	return nil
}

// statusOf is the HTTP status behind err, or ok for a nil error.
func statusOf(err error, ok int) int {
	if err == nil {
		return ok
	}
	if s := client.StatusOf(err); s != 0 {
		return s
	}
	return -1
}

func orMissing(s string) string {
	if s == "" {
		return "not returned"
	}
	return s
}
