package cli

import (
	"github.com/spf13/cobra"
)

// CredentialOptions holds the flags shared by register and login.
type CredentialOptions struct {
	*RootOptions
	Name       string
	Email      string
	Credential string
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CredentialOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Long: `Create an account and sign in to it.

New accounts start with 3 free design tokens. Emails are compared
case-insensitively, so each address can register only once.

Example:
  roomlab register --name Ana --email ana@example.com --credential s3cret`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			svc, done, err := opts.openService(cmd, f)
			if err != nil {
				return err
			}
			defer done()

			p, err := svc.Register(commandContext(cmd), opts.Name, opts.Email, opts.Credential)
			if err != nil {
				return f.Fail(err)
			}
			return f.Success(profileView{Profile: p, headline: "Registered and signed in"})
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email address")
	cmd.Flags().StringVarP(&opts.Credential, "credential", "p", "", "password")

	return cmd
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CredentialOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to an existing account",
		Long: `Sign in to an existing account.

A failed login leaves the current session as it was.

Example:
  roomlab login --email ana@example.com --credential s3cret`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			svc, done, err := opts.openService(cmd, f)
			if err != nil {
				return err
			}
			defer done()

			p, err := svc.Login(commandContext(cmd), opts.Email, opts.Credential)
			if err != nil {
				return f.Fail(err)
			}
			return f.Success(profileView{Profile: p, headline: "Signed in"})
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "email address")
	cmd.Flags().StringVarP(&opts.Credential, "credential", "p", "", "password")

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "logout",
		Short:         "Sign out",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			svc, done, err := rootOpts.openService(cmd, f)
			if err != nil {
				return err
			}
			defer done()

			wasSignedIn := svc.IsAuthenticated()
			if err := svc.Logout(commandContext(cmd)); err != nil {
				return f.Fail(err)
			}
			return f.Success(logoutView{SignedOut: wasSignedIn})
		},
	}
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "whoami",
		Short:         "Show the signed-in account and its balance",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			svc, done, err := rootOpts.openService(cmd, f)
			if err != nil {
				return err
			}
			defer done()

			p, ok, err := svc.CurrentAccount(commandContext(cmd))
			if err != nil {
				return f.Fail(err)
			}
			if !ok {
				return f.Success(whoamiView{})
			}
			return f.Success(whoamiView{Authenticated: true, Profile: &p})
		},
	}
}
