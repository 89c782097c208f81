package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"supplydash/internal/broker"
	"supplydash/internal/cli"
	"supplydash/internal/tokenstore"
)

var statusVerify bool

// authStatusCmd represents the auth status command
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a guest session is available",
	Long: `Shows where the refresh token is stored and whether one is present.

With --verify the token is exchanged once at the provider, which proves that
guest logins will work. The new access token is discarded.

Exits with code 2 when no guest session is available.`,
	Args: cobra.NoArgs,
	RunE: runAuthStatus,
}

func init() {
	authStatusCmd.Flags().BoolVar(&statusVerify, "verify", false, "Exchange the stored token once to check that the provider accepts it")
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	env, err := newAuthEnv(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	rows := [][2]string{
		{"Store", env.store.Describe()},
		{"Provider", env.settings.OAuth.Host},
	}

	_, loadErr := env.store.Load(ctx)
	switch {
	case loadErr == nil:
		rows = append(rows, [2]string{"Refresh token", text.FgGreen.Sprint("Present")})
	case errors.Is(loadErr, tokenstore.ErrNotFound):
		rows = append(rows, [2]string{"Refresh token", text.FgYellow.Sprint("Not stored")})
	default:
		return fmt.Errorf("failed to read token store: %w", loadErr)
	}

	var verifyErr error
	if statusVerify && loadErr == nil {
		guest := broker.NewGuest(env.broker, broker.WithAccessTokenCache(false), broker.WithClearOnInvalidGrant(false))
		defer guest.Close()

		res, err := guest.Login(ctx, broker.Credentials{})
		if err != nil {
			verifyErr = err
			rows = append(rows, [2]string{"Provider check", text.FgRed.Sprint(err.Error())})
		} else {
			expiry := time.Duration(res.ExpiresInSeconds) * time.Second
			rows = append(rows, [2]string{"Provider check", text.FgGreen.Sprintf("Accepted (access token valid %s)", expiry)})
		}
	}

	if loadErr == nil && verifyErr == nil {
		rows = append(rows, [2]string{"Guest access", text.FgGreen.Sprint("Available")})
	} else {
		rows = append(rows, [2]string{"Guest access", text.FgYellow.Sprint("Unavailable (owner must log in)")})
	}
	cli.KeyValue(cmd.OutOrStdout(), rows)

	if loadErr != nil {
		return &cli.AuthRequiredError{Reason: broker.ErrNoGuestSession}
	}
	return cli.ClassifyAuthError(verifyErr)
}
