package cmd

import (
	"fmt"

	"github.com/conneroisu/webgen/internal/appstate"
	"github.com/conneroisu/webgen/internal/config"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show or change the saved session",
	Long: `The session holds the signed-in user, the API token and the UI theme.
It is kept in ~/.webgen/session.yaml unless storage.session_file says
otherwise.`,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		state, err := loadState()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "File:  %s\n", state.Path())
		fmt.Fprintf(out, "Theme: %s\n", state.Theme())
		if u := state.User(); u != nil {
			fmt.Fprintf(out, "User:  %s", u.ID)
			if u.Name != "" {
				fmt.Fprintf(out, " (%s)", u.Name)
			}
			fmt.Fprintln(out)
		} else {
			fmt.Fprintln(out, "User:  signed out")
		}
		if state.Token() != "" {
			fmt.Fprintln(out, "Token: set")
		}
		return nil
	},
}

var sessionThemeCmd = &cobra.Command{
	Use:   "theme [name]",
	Short: "Print or change the UI theme",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := loadState()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), state.Theme())
			return nil
		}
		if err := state.SetTheme(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Theme set to %s\n", args[0])
		return nil
	},
}

var (
	signInName  string
	signInEmail string
	signInToken string
)

var sessionSignInCmd = &cobra.Command{
	Use:   "signin <user-id>",
	Short: "Store the user and API token of a login",
	Example: `  webgen session signin 64b7... --token "$WEBGEN_TOKEN" --name Ada`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := loadState()
		if err != nil {
			return err
		}
		user := appstate.User{ID: args[0], Name: signInName, Email: signInEmail}
		if err := state.SignIn(user, signInToken); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", args[0])
		return nil
	},
}

var sessionTokenCmd = &cobra.Command{
	Use:   "token [value]",
	Short: "Print or replace the API token",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := loadState()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), state.Token())
			return nil
		}
		return state.SetToken(args[0])
	},
}

var sessionSignOutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Forget the user and token, keep the theme",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		state, err := loadState()
		if err != nil {
			return err
		}
		if err := state.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionShowCmd, sessionThemeCmd, sessionSignInCmd, sessionTokenCmd, sessionSignOutCmd)

	sessionSignInCmd.Flags().StringVar(&signInToken, "token", "", "API bearer token")
	sessionSignInCmd.Flags().StringVar(&signInName, "name", "", "Display name")
	sessionSignInCmd.Flags().StringVar(&signInEmail, "email", "", "Email address")
	sessionSignInCmd.MarkFlagRequired("token")
}

func loadState() (*appstate.State, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return openState(cfg)
}
