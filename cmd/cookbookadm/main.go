// cookbookadm performs administrative tasks against the cookbook
// database directly, without going through the web API.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/matzeds/cookbook/auth"
	"github.com/matzeds/cookbook/database"
)

func main() {
	root := &cobra.Command{
		Use:           "cookbookadm",
		Short:         "Cookbook database administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(addUserCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func addUserCmd() *cobra.Command {
	var (
		username string
		password string
		email    string
		fullName string
		admin    bool
	)
	cmd := &cobra.Command{
		Use:   "add-user",
		Short: "Create a user account",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			store, err := database.OpenFromEnv(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}

			var perms []auth.Permission
			if admin {
				perms = append(perms, auth.PermissionAdmin)
			}

			user := database.User{
				ID:             uuid.NewString(),
				Username:       username,
				HashedPassword: hash,
				Email:          email,
				FullName:       fullName,
				Permissions:    auth.PermissionBitmask(perms),
				RegisteredAt:   time.Now().UTC(),
			}
			if err := store.CreateUser(ctx, user); err != nil {
				return err
			}
			fmt.Printf("created user %s (%s)\n", user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "login name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	cmd.Flags().StringVarP(&email, "email", "m", "", "email address")
	cmd.Flags().StringVarP(&fullName, "name", "n", "", "full name")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant the admin permission")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("name")
	return cmd
}
