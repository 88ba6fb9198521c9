package cli

import (
	"context"
	"os"

	"github.com/eggsregaco/regaco/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for an invite token and account details and creates a new
// account. On success the session is already established by the API client.
func (a *App) Register(ctx context.Context) error {
	invite, err := getSimpleText(a.reader, "Enter invite token", os.Stdout)
	if err != nil {
		return err
	}
	username, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}
	name, err := getSimpleText(a.reader, "Enter display name", os.Stdout)
	if err != nil {
		return err
	}
	phone, err := getSimpleText(a.reader, "Enter phone (optional)", os.Stdout)
	if err != nil {
		return err
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	user, err := a.api.Register(ctx, invite, username, name, phone, string(password))
	if err != nil {
		return err
	}
	printlnFn("Welcome,", user.Username + "!")
	return nil
}

// Login prompts for credentials and authenticates against the backend.
func (a *App) Login(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	user, err := a.api.Login(ctx, username, string(password))
	if err != nil {
		return err
	}
	printlnFn("Logged in as", user.Username)
	return nil
}

// Logout clears the local session. The cached events stay on disk.
func (a *App) Logout(ctx context.Context) error {
	if err := a.session.Clear(ctx); err != nil {
		return err
	}
	printlnFn("Logged out")
	return nil
}
