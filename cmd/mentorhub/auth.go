package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"mentorhub/internal/app"
	"mentorhub/internal/client"
	"mentorhub/internal/store"
	"mentorhub/pkg/types"
)

func newLoginCmd(c *cli) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the token for the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := c.readPassword("Password: ")
			if err != nil {
				return err
			}
			api, err := app.NewClient(c.cfg, "", c.log)
			if err != nil {
				return err
			}
			result, err := api.Login(cmd.Context(), types.Credentials{Email: email, Password: password})
			if err != nil {
				return err
			}
			return c.saveSession(cmd.Context(), result)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newRegisterCmd(c *cli) *cobra.Command {
	var name, email, role string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsedRole, err := types.ParseRole(role)
			if err != nil {
				return err
			}
			password, err := c.readPassword("Password: ")
			if err != nil {
				return err
			}
			api, err := app.NewClient(c.cfg, "", c.log)
			if err != nil {
				return err
			}
			result, err := api.Register(cmd.Context(), types.Registration{
				Name:     name,
				Email:    email,
				Password: password,
				Role:     parsedRole,
			})
			if err != nil {
				return err
			}
			return c.saveSession(cmd.Context(), result)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&role, "role", "", "mentor or mentee")
	for _, flag := range []string{"name", "email", "role"} {
		_ = cmd.MarkFlagRequired(flag)
	}
	return cmd
}

func (c *cli) saveSession(ctx context.Context, result *client.AuthResult) error {
	user := result.User
	// TECHNICAL DISCOVERY: some backend versions omit the user object on login;
	// the token claims carry the id and role
	if identity, err := client.ParseIdentity(result.Token); err == nil {
		if user.Key() == "" {
			user.ID = identity.UserID
		}
		if user.Role == "" {
			user.Role = identity.Role
		}
	}

	return c.withStore(func(st *store.Store) error {
		err := st.SaveCredentials(ctx, store.Credentials{
			APIURL:  c.cfg.API.BaseURL,
			Token:   result.Token,
			UserID:  user.Key(),
			Role:    user.Role,
			Name:    user.Name,
			Email:   user.Email,
			SavedAt: c.now(),
		})
		if err != nil {
			return err
		}
		c.success("Logged in as %s (%s)", displayName(user), user.Role)
		return nil
	})
}

func displayName(a types.Account) string {
	if a.Name != "" {
		return a.Name
	}
	if a.Email != "" {
		return a.Email
	}
	return a.Key()
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved token for the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withStore(func(st *store.Store) error {
				if err := st.DeleteCredentials(cmd.Context(), c.cfg.API.BaseURL); err != nil {
					return err
				}
				c.success("Logged out of %s", c.cfg.API.BaseURL)
				return nil
			})
		},
	}
}

func newWhoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withStore(func(st *store.Store) error {
				creds, err := c.credentials(cmd.Context(), st)
				if err != nil {
					return err
				}
				api, err := app.NewClient(c.cfg, creds.Token, c.log)
				if err != nil {
					return err
				}
				account, err := api.Me(cmd.Context())
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "Name\t%s\n", account.Name)
				fmt.Fprintf(tw, "Email\t%s\n", account.Email)
				fmt.Fprintf(tw, "Role\t%s\n", account.Role)
				fmt.Fprintf(tw, "ID\t%s\n", account.Key())
				fmt.Fprintf(tw, "Backend\t%s\n", c.cfg.API.BaseURL)
				if identity, err := client.ParseIdentity(creds.Token); err == nil && !identity.ExpiresAt.IsZero() {
					fmt.Fprintf(tw, "Token expires\t%s\n", identity.ExpiresAt.Local().Format(time.RFC1123))
				}
				return tw.Flush()
			})
		},
	}
}
