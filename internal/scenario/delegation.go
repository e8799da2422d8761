package scenario

import (
	"context"
	"fmt"
	"net/http"

	"shared-tasks-backend/internal/client"
)

func init() {
	register(Scenario{
		Name:     "delegation",
		Synopsis: "full delegation walk with fresh users: invite, accept, act, revoke",
		Run:      delegationFresh,
	})
	register(Scenario{
		Name:     "delegation-fixed-users",
		Synopsis: "delegation walk with fixed users, signing in when they already exist",
		Run:      delegationFixed,
	})
}

func delegationFresh(ctx context.Context, env *Env) error {
	p := env.Out
	p.Title("Delegation walk")

	id := env.Suffix(8)
	olivierName, pinaName := "olivier_"+id, "pina_"+id

	p.Step(1, fmt.Sprintf("Registering Olivier (%s)...", olivierName))
	olivier, err := env.register(ctx, olivierName, "Olivier", "Martin")
	if err != nil {
		return err
	}
	p.Info("OK - Token: %s", tokenPreview(olivier.Token, 40))
	p.Info("ID: %s", olivier.ID)

	p.Step(2, fmt.Sprintf("Registering Pina (%s)...", pinaName))
	pina, err := env.register(ctx, pinaName, "Pina", "Dupont")
	if err != nil {
		return err
	}
	p.Info("OK - Token: %s", tokenPreview(pina.Token, 40))
	p.Info("ID: %s", pina.ID)

	return walkDelegation(ctx, env, olivier, pina, "Work")
}

func delegationFixed(ctx context.Context, env *Env) error {
	p := env.Out
	p.Title("Delegation walk (fixed users)")

	p.Step(1, "Registering or signing in Olivier...")
	olivier, err := env.registerOrLogin(ctx, "olivier_deleg", "Olivier", "Martin")
	if err != nil {
		return err
	}
	p.Info("Token Olivier: %s", tokenPreview(olivier.Token, 50))
	p.Info("ID Olivier: %s", olivier.ID)

	p.Step(2, "Registering or signing in Pina...")
	pina, err := env.registerOrLogin(ctx, "pina_deleg", "Pina", "Dupont")
	if err != nil {
		return err
	}
	p.Info("Token Pina: %s", tokenPreview(pina.Token, 50))
	p.Info("ID Pina: %s", pina.ID)

	p.Step("2b", "Checking authentication...")
	profile, err := olivier.API.Profile(ctx)
	p.Info("Profile Olivier: %d - %s", statusOf(err, http.StatusOK), profile.Username)
	p.Check("token authenticates profile request", err == nil && profile.ID == olivier.ID, client.MessageOf(err, profile.ID))

	return walkDelegation(ctx, env, olivier, pina, "Work Deleg")
}

// walkDelegation runs steps 3 to 15: the owner prepares data, invites the
// delegate, the delegate works on the owner's tasks and loses the right to
// delete them halfway through.
func walkDelegation(ctx context.Context, env *Env, olivier, pina account, categoryName string) error {
	p := env.Out

	p.Step(3, fmt.Sprintf("Olivier creates category %q...", categoryName))
	var categoryID *string
	cat, err := olivier.API.CreateCategory(ctx, client.CategoryRequest{Name: categoryName, Color: "#3B82F6"})
	if err != nil {
		p.Info("Error: %s", client.MessageOf(err, err.Error()))
	} else {
		categoryID = &cat.ID
	}
	p.Info("Category ID: %s", cat.ID)

	p.Step(4, "Olivier creates a task...")
	task, err := olivier.API.CreateTask(ctx, client.TaskRequest{
		Title:       "Olivier's test task",
		Description: "A test task",
		CategoryID:  categoryID,
	})
	if err != nil {
		return abortf("owner task: %s", client.MessageOf(err, err.Error()))
	}
	p.Info("Task ID: %s", task.ID)

	query := pina.Username
	if len(query) > 4 {
		query = query[:4]
	}
	p.Step(5, fmt.Sprintf("Olivier searches for %q...", query))
	users, err := olivier.API.SearchUsers(ctx, query)
	p.Info("Status: %d", statusOf(err, http.StatusOK))
	p.Info("Users found: %d", len(users))
	for _, u := range users {
		p.Info("  - %s (%s %s)", u.Username, u.FirstName, u.LastName)
	}
	exact, err := olivier.API.SearchUsers(ctx, pina.Username)
	found := false
	for _, u := range exact {
		found = found || u.ID == pina.ID
	}
	p.Check("search finds the delegate", found, fmt.Sprintf("%d results for %q, status %d", len(exact), pina.Username, statusOf(err, http.StatusOK)))

	p.Step(6, "Olivier invites Pina with every permission...")
	d, err := olivier.API.CreateDelegation(ctx, allPermissions(pina.ID))
	p.Info("Status: %d", statusOf(err, http.StatusCreated))
	if err != nil {
		p.Info("Error: %s", client.MessageOf(err, err.Error()))
	}
	delegationID := d.ID
	p.Info("Delegation ID: %s", delegationID)

	p.Step(7, "Pina lists the delegations...")
	list, err := pina.API.Delegations(ctx)
	if err != nil {
		return abortf("list delegations: %s", client.MessageOf(err, err.Error()))
	}
	p.Info("Invitations received: %d", len(list.Received))
	p.Info("Pending count: %d", list.PendingCount)
	var received *client.Delegation
	for i := range list.Received {
		if list.Received[i].OwnerID == olivier.ID {
			received = &list.Received[i]
			break
		}
	}
	if received != nil {
		p.Info("Invitation from: %s", received.Owner.DisplayName())
		delegationID = received.ID
	}
	p.Check("delegate sees the invitation", received != nil, fmt.Sprintf("%d received", len(list.Received)))
	if received == nil {
		return abortf("no delegation between %s and %s", olivier.Username, pina.Username)
	}

	p.Step(8, "Pina accepts the invitation...")
	status := received.Status
	if status == "pending" {
		d, err = pina.API.AcceptDelegation(ctx, delegationID)
		if err != nil {
			return abortf("accept: %s", client.MessageOf(err, err.Error()))
		}
		status = d.Status
	} else {
		p.Info("Already %s", status)
	}
	p.Info("Delegation status: %s", status)
	p.Check("delegation accepted", status == "accepted", status)

	p.Step(9, "Pina fetches Olivier's tasks...")
	tasks, err := pina.API.Tasks(ctx, olivier.ID)
	p.Info("Status: %d", statusOf(err, http.StatusOK))
	p.Info("Task count: %d", len(tasks.Tasks))
	for _, t := range tasks.Tasks {
		p.Info("  - %s", t.Title)
	}
	p.Check("delegate lists owner's tasks", err == nil && len(tasks.Tasks) > 0, client.MessageOf(err, "no tasks"))

	p.Step(10, "Pina creates a task for Olivier...")
	created, err := pina.API.CreateTask(ctx, client.TaskRequest{
		Title:       "Task created by Pina",
		Description: "Delegation test",
		OwnerID:     olivier.ID,
	})
	p.Info("Status: %d", statusOf(err, http.StatusCreated))
	if err != nil {
		p.Info("Error: %s", client.MessageOf(err, err.Error()))
	} else {
		p.Info("Task created: %s", created.Title)
	}
	p.Check("delegate creates task owned by owner", err == nil && created.UserID == olivier.ID, client.MessageOf(err, created.UserID))

	p.Step(11, "Olivier reads the activity log...")
	page, err := olivier.API.Activity(ctx, 10)
	if err != nil {
		return abortf("activity: %s", client.MessageOf(err, err.Error()))
	}
	printActivity(p, page)

	p.Step(12, "Olivier revokes Pina's right to delete...")
	off := false
	d, err = olivier.API.UpdateDelegation(ctx, delegationID, client.PermissionPatch{CanDeleteTasks: &off})
	if err != nil {
		p.Info("Error: %s", client.MessageOf(err, err.Error()))
	} else {
		p.Info("canDeleteTasks: %t", d.CanDeleteTasks)
	}
	p.Check("delete permission revoked", err == nil && !d.CanDeleteTasks, client.MessageOf(err, "still granted"))

	p.Step(13, "Pina tries to delete a task...")
	err = pina.API.DeleteTask(ctx, task.ID)
	p.Info("Status: %d", statusOf(err, http.StatusNoContent))
	p.Info("Result: %s", client.MessageOf(err, "Deleted!"))
	p.Check("delegate delete is refused", client.StatusOf(err) == http.StatusForbidden, fmt.Sprint(statusOf(err, http.StatusNoContent)))

	p.Step(14, "Pina edits a task...")
	title := "Task edited by Pina"
	edited, err := pina.API.UpdateTask(ctx, task.ID, client.TaskUpdate{Title: &title})
	p.Info("Status: %d", statusOf(err, http.StatusOK))
	if err != nil {
		p.Info("Error: %s", client.MessageOf(err, err.Error()))
	} else {
		p.Info("New title: %s", edited.Title)
	}
	p.Check("delegate edit succeeds", err == nil && edited.Title == title, client.MessageOf(err, edited.Title))

	p.Step(15, "Final activity log...")
	page, err = olivier.API.Activity(ctx, 15)
	if err != nil {
		return abortf("activity: %s", client.MessageOf(err, err.Error()))
	}
	printActivity(p, page)
	edits := 0
	for _, l := range page.Logs {
		if l.Action == "updated_task" && l.Actor != nil && l.Actor.ID == pina.ID {
			edits++
		}
	}
	p.Check("owner log records the delegate's edit", edits > 0, "no updated_task by delegate")

	return nil
}
