package cmd

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"supplydash/internal/broker"
	"supplydash/internal/cli"
	"supplydash/internal/login"
)

var (
	loginCallbackAddr string
	loginNoBrowser    bool
)

// authLoginCmd represents the auth login command
var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in as the owner and store the refresh token",
	Long: `Runs the interactive owner login.

A local callback server is started, the browser is sent to the provider's
authorization page, and the returned code is exchanged for tokens. The
refresh token is written to the configured store, which enables guest access
for everyone else.

The provider must accept the callback URL as a redirect URI, by default
http://localhost:8085/callback.`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

func init() {
	authLoginCmd.Flags().StringVar(&loginCallbackAddr, "callback-addr", login.DefaultCallbackAddr, "Address for the local OAuth callback server")
	authLoginCmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false, "Print the login URL instead of opening a browser")
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	env, err := newAuthEnv(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	oauth := env.settings.OAuth

	// fail on missing client configuration before involving the browser
	if _, err := env.broker.AuthorizeURL(broker.Credentials{}, oauth.AuthorizePath); err != nil {
		return err
	}

	flow, err := login.Start(ctx, loginCallbackAddr)
	if err != nil {
		return err
	}
	defer flow.Stop()

	if loginNoBrowser {
		flow.OpenBrowser = nil
	}
	flow.Announce = func(u string) {
		fmt.Fprintf(out, "Opening browser for authentication...\nIf the browser doesn't open, visit:\n  %s\n\n", u)
	}

	state := uuid.NewString()
	authURL := login.AuthCodeURL(oauth.Host, oauth.AuthorizePath, oauth.ClientID, flow.RedirectURI(), oauth.Scopes, state)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
	s.Suffix = " Waiting for login in the browser..."
	s.Start()
	code, redirectURI, err := flow.Authorize(ctx, authURL, state)
	if err != nil {
		s.FinalMSG = text.FgRed.Sprint("Login was not completed") + "\n"
		s.Stop()
		return &cli.AuthFailedError{Reason: err}
	}

	s.Lock()
	s.Suffix = " Exchanging authorization code..."
	s.Unlock()
	res, err := env.broker.ExchangeCode(ctx, broker.Credentials{}, code, redirectURI)
	s.Stop()
	if err != nil {
		return cli.ClassifyAuthError(err)
	}

	fmt.Fprintln(out, cli.OK("Logged in to "+oauth.Host))
	if tok := res.ToOAuth2Token(); !tok.Expiry.IsZero() {
		fmt.Fprintf(out, "  access token valid until %s\n", tok.Expiry.Local().Format(time.RFC1123))
	}
	switch {
	case res.Persisted:
		fmt.Fprintln(out, cli.OK("Refresh token stored in "+env.store.Describe()+"; guest access is enabled"))
	case res.RefreshToken == "":
		fmt.Fprintln(out, cli.Warning("The provider did not issue a refresh token; check that the offline_access scope is allowed"))
	default:
		fmt.Fprintln(out, cli.Warning(env.store.Describe()+" is read-only; store the token there yourself (supplydash auth import)"))
	}
	return nil
}
