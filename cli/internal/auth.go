package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/devilmonastery/frankenergie/graphql"
)

// formatDuration formats a duration in a human-friendly way (e.g., "2 days, 3 hours and 45 minutes")
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string
	for _, u := range []struct {
		n    int
		unit string
	}{
		{days, "day"},
		{hours, "hour"},
		{minutes, "minute"},
	} {
		if u.n > 0 {
			parts = append(parts, plural(u.n, u.unit))
		}
	}
	if len(parts) == 0 && seconds > 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	switch len(parts) {
	case 0:
		return "0 seconds"
	case 1:
		return parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication commands",
		Long:  `Log in to Frank Energie and manage the cached session`,
	}

	cmd.AddCommand(newAuthLoginCommand())
	cmd.AddCommand(newAuthLogoutCommand())
	cmd.AddCommand(newAuthStatusCommand())
	cmd.AddCommand(newAuthTokenCommand())
	cmd.AddCommand(newAuthRenewCommand())

	return cmd
}

func newAuthLoginCommand() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with your Frank Energie account",
		Long: `Authenticate with email and password. The resulting tokens are cached
so later commands run without logging in again.

Email and password fall back to auth.email and auth.password in the config
file, and are prompted for when still missing.

Examples:
  # Prompt for everything
  frank auth login

  # Password from the environment
  FRANK_PASSWORD=... frank auth login -u me@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := getCliContext(cmd)

			if email == "" {
				email = ctx.Config.Auth.Email
			}
			if password == "" {
				password = ctx.Config.Auth.Password
			}
			if email == "" || password == "" {
				var err error
				email, password, err = promptCredentials(cmd, email)
				if err != nil {
					return err
				}
			}

			ctx.Logger.Info("logging in", slog.String("email", email))
			token, err := ctx.Client.Login(cmd.Context(), email, password)
			if err != nil {
				var authErr *graphql.AuthenticationError
				if errors.As(err, &authErr) && authErr.Reason == graphql.ReasonInvalidCredentials {
					return fmt.Errorf("login failed: wrong email or password")
				}
				return fmt.Errorf("login failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Logged in as %s\n", email)
			fmt.Fprintf(cmd.OutOrStdout(), "  Token valid for %s\n", formatDuration(time.Until(token.ExpiresAt)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "u", "", "Account email (if not provided, will prompt)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (if not provided, will prompt)")

	return cmd
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the cached session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := getCliContext(cmd)
			ctx.Client.Logout()
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Successfully logged out")
			return nil
		},
	}
}

func newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := getCliContext(cmd)
			w := cmd.OutOrStdout()

			token := ctx.Client.Session().Token()
			if token == nil {
				fmt.Fprintln(w, "Not logged in")
				return nil
			}

			fmt.Fprintf(w, "Session: %s\n", ctx.Client.Session().State())
			fmt.Fprintf(w, "Token: %s\n", token.Redacted())
			fmt.Fprintf(w, "Token expires: %s\n", token.ExpiresAt.Local().Format("2006-01-02 15:04:05 MST"))

			now := time.Now()
			if ctx.Client.AuthenticationValid() {
				fmt.Fprintf(w, "✓  Valid for %s\n", formatDuration(token.ExpiresIn(now)))
			} else {
				fmt.Fprintf(w, "⚠  Token expired %s ago - automatic refresh will be attempted on next request\n",
					formatDuration(now.Sub(token.ExpiresAt)))
			}
			return nil
		},
	}
}

func newAuthTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token, renewing it if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := getCliContext(cmd)

			token, err := ctx.Client.AccessToken(cmd.Context())
			if err != nil {
				return fmt.Errorf("not logged in: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token.AccessToken)
			return nil
		},
	}
}

func newAuthRenewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "renew",
		Short: "Renew the access token now",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := getCliContext(cmd)

			token, err := ctx.Client.RenewToken(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to renew token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Token renewed, valid for %s\n", formatDuration(time.Until(token.ExpiresAt)))
			return nil
		},
	}
}

// promptCredentials asks for the email (unless known) and the password.
// The password is read without echo when stdin is a terminal.
func promptCredentials(cmd *cobra.Command, email string) (string, string, error) {
	out := cmd.ErrOrStderr()
	in := bufio.NewReader(cmd.InOrStdin())

	if email == "" {
		fmt.Fprint(out, "Email: ")
		line, err := in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", "", fmt.Errorf("failed to read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}

	fmt.Fprint(out, "Password: ")
	var password string
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		passwordBytes, err := term.ReadPassword(fd)
		fmt.Fprintln(out) // newline after password input
		if err != nil {
			return "", "", fmt.Errorf("failed to read password: %w", err)
		}
		password = string(passwordBytes)
	} else {
		line, err := in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", "", fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	if email == "" || password == "" {
		return "", "", fmt.Errorf("email and password are required")
	}
	return email, password, nil
}
