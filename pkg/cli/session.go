package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and sync your tasks",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Stop tracking and clear the local session",
	RunE:  runLogout,
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password (or FIELDTASK_PASSWORD)")
}

func prompt(label string) (string, error) {
	fmt.Printf("%s: ", label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	email := loginEmail
	password := loginPassword
	if password == "" {
		password = os.Getenv("FIELDTASK_PASSWORD")
	}
	var err error
	if email == "" {
		if email, err = prompt("Email"); err != nil {
			return err
		}
	}
	if password == "" {
		if password, err = prompt("Password"); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		user, err := a.session.Login(ctx, email, password)
		if err != nil {
			return err
		}
		fmt.Printf("Logged in as %s\n", firstNonEmpty(user.Name, user.Email, user.ID))

		snap, err := a.engine.SyncForUser(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("logged in, but sync failed: %w", err)
		}
		fmt.Printf("Synced %d tasks, %d orders\n", len(snap.Tasks), len(snap.Orders))
		return nil
	})
}

func runLogout(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		if err := a.session.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("Logged out")
		return nil
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
