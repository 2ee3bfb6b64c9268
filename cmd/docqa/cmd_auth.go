package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"docqa-client/internal/api"
	"docqa-client/internal/app"
	"docqa-client/internal/bootstrap"
	"docqa-client/internal/session"
)

var (
	authEmail    string
	authPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the access token",
	Long: `Signs in with email and password. When --password is omitted it is read
from the first line of standard input.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordFromInput(cmd)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
			if err := a.Auth.Login(ctx, authEmail, password); err != nil {
				if detail, ok := api.UnauthorizedDetail(err); ok {
					return errors.New(detail)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed in as", authEmail)
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
			if err := a.Auth.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		})
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordFromInput(cmd)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
			user, err := a.Auth.Register(ctx, app.RegisterInput{Email: authEmail, Password: password})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (id %d), run `docqa login` to sign in\n", user.Email, user.ID)
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether this client is signed in",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
			out := cmd.OutOrStdout()
			snap := a.Session.Snapshot()
			fmt.Fprintf(out, "session:     %s\n", snap.State)
			fmt.Fprintf(out, "token store: %s\n", a.Config.Session.Store)
			fmt.Fprintf(out, "service:     %s\n", a.API.BaseURL())
			if snap.Token == "" {
				return nil
			}
			info, err := session.Describe(snap.Token, time.Now())
			if err != nil {
				fmt.Fprintln(out, "token:       opaque")
				return nil
			}
			if info.Subject != "" {
				fmt.Fprintf(out, "subject:     %s\n", info.Subject)
			}
			if info.ExpiresAt != nil {
				suffix := ""
				if info.Expired {
					suffix = " (expired)"
				}
				fmt.Fprintf(out, "expires:     %s%s\n", info.ExpiresAt.Local().Format(time.RFC1123), suffix)
			}
			return nil
		})
	},
}

var watchSessionCmd = &cobra.Command{
	Use:   "watch-session",
	Short: "Print session changes made by any docqa process until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s (current)\n", time.Now().Format(time.TimeOnly), a.Session.State())
			unsubscribe := a.Session.Subscribe(func(ev session.Event) {
				line := fmt.Sprintf("%s  %s (%s)", time.Now().Format(time.TimeOnly), ev.State, ev.Origin)
				if ev.Redirect {
					line += " sign-in required"
				}
				fmt.Fprintln(out, line)
			})
			defer unsubscribe()
			<-ctx.Done()
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVarP(&authEmail, "email", "e", "", "account email")
		c.Flags().StringVarP(&authPassword, "password", "p", "", "account password (read from stdin when omitted)")
		_ = c.MarkFlagRequired("email")
	}
}

func passwordFromInput(cmd *cobra.Command) (string, error) {
	if authPassword != "" {
		return authPassword, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password from stdin failed: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
