package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sakif/glicoflow/internal/client"
)

func (a *app) newRegisterCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "register [username]",
		Short: "Create an account and log in",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			c := a.anonClient()

			username, err := a.stringArgOrPrompt(cmd, args, "Username: ")
			if err != nil {
				return err
			}

			// A failed availability check is not fatal; register itself
			// rejects a taken name.
			if available, err := c.CheckUsername(ctx, username); err == nil && !available {
				return fmt.Errorf("username %q is already taken", username)
			}

			if email == "" {
				if email, err = a.prompt(cmd, "Email: "); err != nil {
					return err
				}
			}
			password, err := a.promptPassword(cmd, "Password: ")
			if err != nil {
				return err
			}

			res, err := c.Register(ctx, username, email, password)
			if err != nil {
				return err
			}
			if err := client.SaveToken(a.tokenPath, res.Token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered and logged in as %s\n", res.User.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func (a *app) newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [username]",
		Short: "Log in and store the session token",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := a.stringArgOrPrompt(cmd, args, "Username: ")
			if err != nil {
				return err
			}
			password, err := a.promptPassword(cmd, "Password: ")
			if err != nil {
				return err
			}

			res, err := a.anonClient().Login(commandContext(cmd), username, password)
			if err != nil {
				return err
			}
			if err := client.SaveToken(a.tokenPath, res.Token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", res.User.Username)
			return nil
		},
	}
}

// Logout always removes the local token, even if the server is unreachable
// or already rejects the token.
func (a *app) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c, err := a.authedClient(); err == nil {
				_ = c.Logout(commandContext(cmd))
			}
			if err := client.DeleteToken(a.tokenPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func (a *app) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.authedClient()
			if err != nil {
				return err
			}
			u, err := c.Me(commandContext(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", u.Username, u.Email)
			return nil
		},
	}
}
