package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"supplydash/internal/broker"
	"supplydash/internal/cli"
	"supplydash/internal/config"
	"supplydash/internal/tokenstore"
)

// authCmd represents the auth command group
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the stored owner refresh token",
	Long: `Manage the refresh token that enables guest access.

The token is kept in the backend configured under tokenStore (a file by
default). Guests get access tokens minted from it; nobody else ever sees it.

Examples:
  supplydash auth login                 # Owner login in the browser
  supplydash auth status                # Is a guest session available?
  supplydash auth status --verify       # ...and does the provider accept it?
  supplydash auth logout                # Remove the stored token
  supplydash auth import < token.txt    # Store a token obtained elsewhere`,
}

// authLogoutCmd represents the auth logout command
var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored refresh token",
	Long: `Removes the stored refresh token. Guest access stops working until the
owner logs in again.`,
	Args: cobra.NoArgs,
	RunE: runAuthLogout,
}

// authImportCmd represents the auth import command
var authImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Store a refresh token read from stdin",
	Long: `Reads a refresh token from standard input and stores it in the configured
backend, replacing any previous token. Use this to move a token obtained on
a developer machine to a deployment.

Examples:
  supplydash auth import < data/refresh_token
  kubectl get secret dash -o jsonpath='{.data.token}' | base64 -d | supplydash auth import`,
	Args: cobra.NoArgs,
	RunE: runAuthImport,
}

func init() {
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authImportCmd)
	rootCmd.AddCommand(authCmd)
}

// authEnv is what the auth commands work with.
type authEnv struct {
	settings *config.Config
	store    tokenstore.Store
	broker   *broker.Broker
}

func newAuthEnv(cmd *cobra.Command) (*authEnv, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	store, err := tokenstore.New(settings.TokenStore)
	if err != nil {
		return nil, err
	}
	return &authEnv{
		settings: settings,
		store:    store,
		broker:   broker.NewFromConfig(settings.OAuth, store),
	}, nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	env, err := newAuthEnv(cmd)
	if err != nil {
		return err
	}

	if err := env.store.Clear(cmd.Context()); err != nil {
		if errors.Is(err, tokenstore.ErrReadOnly) {
			return fmt.Errorf("%s is read-only; unset the variable in the deployment instead", env.store.Describe())
		}
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.OK("Refresh token removed from "+env.store.Describe()))
	return nil
}

func runAuthImport(cmd *cobra.Command, args []string) error {
	env, err := newAuthEnv(cmd)
	if err != nil {
		return err
	}

	token, err := readToken(cmd.InOrStdin())
	if err != nil {
		return err
	}
	if err := env.store.Save(cmd.Context(), token); err != nil {
		if errors.Is(err, tokenstore.ErrReadOnly) {
			return fmt.Errorf("%s is read-only; set the variable in the deployment instead", env.store.Describe())
		}
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.OK("Refresh token stored in "+env.store.Describe()))
	return nil
}

// readToken reads the first non-empty line of r.
func readToken(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 64<<10)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return "", errors.New("no refresh token on standard input")
}
