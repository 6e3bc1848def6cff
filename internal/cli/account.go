package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hazard-reporter/internal/models"
)

type credentialFlags struct {
	email    string
	password string
}

func (c *credentialFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.email, "email", "", "Account e-mail address")
	cmd.Flags().StringVar(&c.password, "password", "", "Account password (prompted if omitted)")
	_ = cmd.MarkFlagRequired("email")
}

// resolve prompts for the password when it was not given as a flag.
func (c *credentialFlags) resolve(cmd *cobra.Command) (string, string, error) {
	if c.password == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return "", "", fmt.Errorf("read password: %w", err)
		}
		c.password = strings.TrimRight(line, "\r\n")
	}
	return strings.TrimSpace(c.email), c.password, nil
}

func newLoginCmd(e *env) *cobra.Command {
	var creds credentialFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, password, err := creds.resolve(cmd)
			if err != nil {
				return err
			}
			sess, err := e.app.Session.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", sess.UserID)
			return nil
		},
	}
	creds.register(cmd)
	return cmd
}

func newSignUpCmd(e *env) *cobra.Command {
	var creds credentialFlags
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, password, err := creds.resolve(cmd)
			if err != nil {
				return err
			}
			sess, err := e.app.Session.SignUp(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account created; signed in as %s\n", sess.UserID)
			return nil
		},
	}
	creds.register(cmd)
	return cmd
}

func newLogoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.app.Session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newSessionCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), e.app.Session.Snapshot())
		},
	}
}

// describeSession is the one-line summary used by other commands.
func describeSession(s models.Session) string {
	if !s.IsAuthenticated() {
		return "not signed in"
	}
	return "signed in as " + s.UserID
}
