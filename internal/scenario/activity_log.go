package scenario

import (
	"context"
	"fmt"

	"shared-tasks-backend/internal/client"
)

func init() {
	register(Scenario{
		Name:     "activity-log",
		Synopsis: "delegate acts for an owner; both activity logs show the actions",
		Run:      activityLog,
	})
}

func activityLog(ctx context.Context, env *Env) error {
	p := env.Out
	p.Title("Activity log with entries on both sides")

	id := env.Suffix(6)
	aliceName, bobName := "alice_"+id, "bob_"+id

	p.Step(1, fmt.Sprintf("Registering Alice (%s)...", aliceName))
	alice, err := env.register(ctx, aliceName, "Alice", "Martin")
	if err != nil {
		return err
	}
	p.Info("OK - ID: %s", alice.ID)

	p.Step(2, fmt.Sprintf("Registering Bob (%s)...", bobName))
	bob, err := env.register(ctx, bobName, "Bob", "Dupont")
	if err != nil {
		return err
	}
	p.Info("OK - ID: %s", bob.ID)

	p.Step(3, "Alice invites Bob with every permission...")
	d, err := alice.API.CreateDelegation(ctx, allPermissions(bob.ID))
	if err != nil {
		return abortf("invite: %v", err)
	}
	p.Info("Delegation created: %s", d.ID)

	p.Step(4, "Bob accepts the invitation...")
	d, err = bob.API.AcceptDelegation(ctx, d.ID)
	if err != nil {
		return abortf("accept: %v", err)
	}
	p.Info("Status: %s", d.Status)
	p.Check("invitation accepted", d.Status == "accepted", d.Status)

	p.Step(5, "Bob creates a task for Alice...")
	task, err := bob.API.CreateTask(ctx, client.TaskRequest{
		Title:       "Task created by Bob for Alice",
		Description: "Double log test",
		OwnerID:     alice.ID,
	})
	if err != nil {
		p.Info("Error: %s", client.MessageOf(err, "task not created"))
	} else {
		p.Info("Task created: %s", task.Title)
	}
	p.Check("delegate creates task for owner", err == nil && task.UserID == alice.ID, client.MessageOf(err, task.UserID))

	p.Step(6, "Bob creates a category for Alice...")
	cat, err := bob.API.CreateCategory(ctx, client.CategoryRequest{
		Name:    "Bob's category",
		Color:   "#FF5733",
		OwnerID: alice.ID,
	})
	if err != nil {
		p.Info("Error: %s", client.MessageOf(err, "category not created"))
	} else {
		p.Info("Category created: %s", cat.Name)
	}
	p.Check("delegate creates category for owner", err == nil && cat.UserID == alice.ID, client.MessageOf(err, cat.UserID))

	p.Step(7, "Alice's activity log (owner):")
	page, err := alice.API.Activity(ctx, 10)
	if err != nil {
		return abortf("owner activity: %v", err)
	}
	printActivity(p, page)
	byBob := 0
	for _, l := range page.Logs {
		if l.Actor != nil && l.Actor.ID == bob.ID && !l.IsOwnAction {
			byBob++
		}
	}
	p.Check("owner log shows both delegate actions", byBob == 2, fmt.Sprintf("%d entries by delegate", byBob))

	p.Step(8, "Bob's activity log (delegate):")
	page, err = bob.API.Activity(ctx, 10)
	if err != nil {
		return abortf("delegate activity: %v", err)
	}
	printActivity(p, page)
	mirrored := 0
	for _, l := range page.Logs {
		if l.IsOwnAction && l.IsForOther && l.TargetOwner != nil && l.TargetOwner.ID == alice.ID {
			mirrored++
		}
	}
	p.Check("delegate log mirrors actions done for owner", mirrored == 2, fmt.Sprintf("%d mirrored entries", mirrored))

	return nil
}
