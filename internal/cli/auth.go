package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dukerupert/shoplist/internal/reconcile"
)

// RegisterOptions holds flags for the register command.
type RegisterOptions struct {
	*RootOptions
	Email    string
	Name     string
	Password string
}

func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Long: `Create an account on the configured server and store the session locally.

The password is read from the first line of stdin when --password is omitted.

Example:
  shoplist register --email ann@example.com --name Ann --password s3cret!`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password (read from stdin when omitted)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runRegister(opts *RegisterOptions, cmd *cobra.Command) error {
	password, err := readPassword(cmd, opts.Password)
	if err != nil {
		return err
	}
	return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app) error {
		user, err := a.rec.Register(ctx, opts.Email, password, opts.Name)
		if err != nil {
			return err
		}
		return a.out.emit(user, func(w io.Writer) {
			fmt.Fprintf(w, "Signed in as %s <%s>\n", user.Name, user.Email)
		})
	})
}

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	Email    string
	Password string
}

func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the server",
		Long: `Sign in and store the session locally. Signing in as a different user
discards the previous user's cached lists and unsynced changes.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password (read from stdin when omitted)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runLogin(opts *LoginOptions, cmd *cobra.Command) error {
	password, err := readPassword(cmd, opts.Password)
	if err != nil {
		return err
	}
	return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app) error {
		user, err := a.rec.Login(ctx, opts.Email, password)
		if err != nil {
			return err
		}
		if err := a.out.emit(user, func(w io.Writer) {
			fmt.Fprintf(w, "Signed in as %s <%s>\n", user.Name, user.Email)
		}); err != nil {
			return err
		}
		a.badge(ctx)
		return nil
	})
}

// LogoutOptions holds flags for the logout command.
type LogoutOptions struct {
	*RootOptions
	Force bool
}

func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogoutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "logout",
		Short:         "Sign out and clear local data",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "discard changes that have not synced")

	return cmd
}

func runLogout(opts *LogoutOptions, cmd *cobra.Command) error {
	return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app) error {
		pending, err := a.queue.Size(ctx)
		if err != nil {
			return err
		}
		if pending > 0 && !opts.Force {
			return NewExitError(ExitFailure, fmt.Sprintf("%d changes have not synced: run shoplist sync first or pass --force", pending))
		}
		if err := a.rec.Logout(ctx); err != nil {
			return err
		}
		return a.out.emit(map[string]any{"signedOut": true, "discarded": pending}, func(w io.Writer) {
			fmt.Fprintln(w, "Signed out, local data cleared")
		})
	})
}

func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "whoami",
		Short:         "Show the signed-in user",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				if err := a.requireSession(ctx); err != nil {
					return err
				}
				user, origin, err := a.rec.Me(ctx)
				if err != nil {
					return err
				}
				if user == nil {
					return NewExitError(ExitFailure, "not signed in: run shoplist login")
				}
				return a.out.emit(user, func(w io.Writer) {
					line := fmt.Sprintf("%s <%s>", user.Name, user.Email)
					if origin == reconcile.OriginCache {
						line += " " + mutedStyle.Render("(saved session)")
					}
					fmt.Fprintln(w, line)
				})
			})
		},
	}
}

// readPassword returns the flag value, or the first line of stdin.
func readPassword(cmd *cobra.Command, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if scanner.Scan() {
		if pw := strings.TrimRight(scanner.Text(), "\r\n"); pw != "" {
			return pw, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", WrapExitError(ExitCommandError, "failed to read password", err)
	}
	return "", NewExitError(ExitCommandError, "password is required: pass --password or pipe it on stdin")
}
