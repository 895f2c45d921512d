// Command latchkey runs the authentication service and its operator
// tooling.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/latchkey-io/latchkey/internal/app/bootstrap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "latchkey",
		Short:         "Pluggable HTTP authentication service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/default.yaml", "path to the YAML config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newSessionsCmd(&configPath))
	root.AddCommand(newUsersCmd(&configPath))
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server with the configured auth strategy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap.NewRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			return rt.Run(cmd.Context())
		},
	}
}

func newSessionsCmd(configPath *string) *cobra.Command {
	sessions := &cobra.Command{
		Use:   "sessions",
		Short: "Session maintenance",
	}

	sessions.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired session records from the configured store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), *configPath, func(ctx context.Context, rt *bootstrap.Runtime) error {
				removed, err := rt.Service().CleanupSessions(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired sessions\n", removed)
				return nil
			})
		},
	})

	sessions.AddCommand(&cobra.Command{
		Use:   "revoke <user-id>",
		Short: "Remove every session of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), *configPath, func(ctx context.Context, rt *bootstrap.Runtime) error {
				removed, err := rt.Service().RevokeUserSessions(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "revoked %d sessions\n", removed)
				return nil
			})
		},
	})

	return sessions
}

func newUsersCmd(configPath *string) *cobra.Command {
	users := &cobra.Command{
		Use:   "users",
		Short: "User provisioning",
	}

	var email, password string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user with a bcrypt-hashed password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), *configPath, func(ctx context.Context, rt *bootstrap.Runtime) error {
				user, err := rt.Service().CreateUser(ctx, email, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", user.ID, user.Email)
				return nil
			})
		},
	}
	create.Flags().StringVar(&email, "email", "", "user email")
	create.Flags().StringVar(&password, "password", "", "user password")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")
	users.AddCommand(create)

	return users
}

func withRuntime(ctx context.Context, configPath string, fn func(context.Context, *bootstrap.Runtime) error) error {
	rt, err := bootstrap.NewRuntime(ctx, configPath)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)
	return fn(ctx, rt)
}
