package cli

import (
	"context"
	"strconv"
	"time"
)

// Admin dispatches the admin subcommands: invite [max-uses [hours]],
// invites, revoke <id>, users, deluser <id>, reset-box. The server enforces
// the admin role; the client only routes.
func (a *App) Admin(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printlnFn("Usage: admin invite|invites|revoke|users|deluser|reset-box")
		return nil
	}

	switch args[0] {
	case "invite":
		maxUses, hours := 1, 24
		if len(args) > 1 {
			if n, err := strconv.Atoi(args[1]); err == nil {
				maxUses = n
			}
		}
		if len(args) > 2 {
			if n, err := strconv.Atoi(args[2]); err == nil {
				hours = n
			}
		}
		invite, err := a.api.CreateInvite(ctx, maxUses, hours)
		if err != nil {
			return err
		}
		printlnFn("Invite token:", invite.Token)
		printlnFn("Expires:", invite.ExpiresAt.Local().Format(time.RFC822))
		return nil

	case "invites":
		invites, err := a.api.Invites(ctx)
		if err != nil {
			return err
		}
		if len(invites) == 0 {
			printlnFn("No invites")
			return nil
		}
		for _, inv := range invites {
			status := "open"
			if inv.Used {
				status = "used"
			}
			printlnFn(inv.Token, " expires", inv.ExpiresAt.Local().Format(time.RFC822),
				" uses", strconv.Itoa(inv.Uses)+"/"+strconv.Itoa(inv.MaxUses), " "+status)
		}
		return nil

	case "revoke":
		if len(args) < 2 {
			printlnFn("Usage: admin revoke <id>")
			return nil
		}
		return a.api.RevokeInvite(ctx, args[1])

	case "users":
		users, err := a.api.Users(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			printlnFn(u.ID, " ", u.Username, " ("+u.Role+")")
		}
		return nil

	case "deluser":
		if len(args) < 2 {
			printlnFn("Usage: admin deluser <id>")
			return nil
		}
		return a.api.DeleteUser(ctx, args[1])

	case "reset-box":
		if err := a.api.ResetBox(ctx); err != nil {
			return err
		}
		printlnFn("Box reset")
		return nil

	default:
		printlnFn("Unknown admin command:", args[0])
		return nil
	}
}
