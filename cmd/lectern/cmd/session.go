package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var (
	errNotLoggedIn = errors.New("not logged in; run \"lectern login\"")
	errLoginFailed = errors.New("login failed")
)

func newLoginCmd(flags *globalFlags) *cobra.Command {
	var (
		username      string
		password      string
		passwordStdin bool
	)
	c := &cobra.Command{
		Use:   "login",
		Short: "Sign in and persist the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if passwordStdin {
				p, err := readLine(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading password: %w", err)
				}
				password = p
			}

			a, err := newApp(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.auth.Login(cmd.Context(), username, password) {
				return errLoginFailed
			}
			u := a.auth.User()
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", u.Username, u.Role)
			return nil
		},
	}
	c.Flags().StringVarP(&username, "username", "u", "", "Account name")
	c.Flags().StringVarP(&password, "password", "p", "", "Password (prefer --password-stdin)")
	c.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	c.MarkFlagRequired("username")
	return c
}

func newLogoutCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			a.auth.Initialize(cmd.Context())
			a.auth.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newStatusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Restore the stored session and report its state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			state := a.auth.Initialize(cmd.Context())
			out := cmd.OutOrStdout()
			if u := a.auth.User(); u != nil {
				fmt.Fprintf(out, "%s as %s (%s)\n", state, u.Username, u.Role)
				return nil
			}
			fmt.Fprintln(out, state)
			return nil
		},
	}
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
