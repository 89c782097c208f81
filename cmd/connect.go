package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"supplydash/internal/cli"
	"supplydash/internal/config"
	"supplydash/internal/login"
	"supplydash/internal/session"
)

var (
	connectBackend      string
	connectDoc          string
	connectGuestOnly    bool
	connectClientID     string
	connectHost         string
	connectCallbackAddr string
	connectObject       string
	connectDecode       string
)

// connectCmd runs the session client against a running server.
var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Open an engine session through a running supplydash server",
	Long: `Resolves an access token the way the dashboard does (guest login first,
then the owner login unless --guest-only is set), opens the document through
the server's tunnel and reports each step.

With --object the JSON object definition in the file is created as a session
object and its layout is printed, decoded with --decode when given.

Examples:
  supplydash connect --doc 56fa0d58-a8db-4dc8-8ab7-0c9d5ba0dab0 --guest-only
  supplydash connect --doc <id> --object kpis.json --decode kpis`,
	Args: cobra.NoArgs,
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().StringVar(&connectBackend, "backend", fmt.Sprintf("http://localhost:%d", config.DefaultPort), "supplydash server URL")
	connectCmd.Flags().StringVar(&connectDoc, "doc", "", "Engine document (app) id")
	connectCmd.Flags().BoolVar(&connectGuestOnly, "guest-only", false, "Fail instead of starting an owner login when no guest session exists")
	connectCmd.Flags().StringVar(&connectClientID, "client-id", "", "OAuth client id (default from configuration)")
	connectCmd.Flags().StringVar(&connectHost, "host", "", "Analytics tenant host (default from configuration)")
	connectCmd.Flags().StringVar(&connectCallbackAddr, "callback-addr", login.DefaultCallbackAddr, "Address for the local OAuth callback server")
	connectCmd.Flags().StringVar(&connectObject, "object", "", "JSON file with session object properties")
	connectCmd.Flags().StringVar(&connectDecode, "decode", "", "Decode the layout as kpis, categories or scatter")
	_ = connectCmd.MarkFlagRequired("doc")

	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, args []string) error {
	switch connectDecode {
	case "", "kpis", "categories", "scatter":
	default:
		return fmt.Errorf("unknown --decode value %q (want kpis, categories or scatter)", connectDecode)
	}

	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	opts := session.Options{
		BackendURL:       connectBackend,
		DocID:            connectDoc,
		ClientID:         firstNonEmpty(connectClientID, settings.OAuth.ClientID),
		Host:             firstNonEmpty(connectHost, settings.OAuth.Host),
		AuthorizePath:    settings.OAuth.AuthorizePath,
		Scopes:           settings.OAuth.Scopes,
		RedirectURI:      settings.OAuth.RedirectURI,
		AllowInteractive: !connectGuestOnly,
	}
	if !connectGuestOnly {
		flow, err := login.Start(ctx, connectCallbackAddr)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), cli.Warning(fmt.Sprintf("Owner login unavailable: %v", err)))
		} else {
			defer flow.Stop()
			flow.Announce = func(u string) {
				fmt.Fprintf(cmd.ErrOrStderr(), "\nNo guest session; log in as the owner:\n  %s\n", u)
			}
			opts.Authorizer = flow
			opts.RedirectURI = flow.RedirectURI()
		}
	}

	var progression []string
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
	s.Suffix = " Connecting..."
	client := session.NewClient(session.NewResolver(opts), session.WithStatus(func(st session.Status, err error) {
		progression = append(progression, string(st))
		s.Lock()
		s.Suffix = " " + strings.ToUpper(string(st[:1])) + string(st[1:]) + "..."
		s.Unlock()
	}))
	defer client.Close()

	s.Start()
	sess, err := client.Session(ctx)
	s.Stop()
	fmt.Fprintln(out, "Status: "+strings.Join(progression, " → "))
	if err != nil {
		fmt.Fprintln(out, cli.Failure("Connection failed"))
		return cli.ClassifyAuthError(err)
	}
	fmt.Fprintln(out, cli.OK(fmt.Sprintf("Opened document %s (handle %d)", connectDoc, sess.Doc().Handle)))

	if connectObject == "" {
		return nil
	}
	return showObject(ctx, out, sess)
}

func showObject(ctx context.Context, out io.Writer, sess *session.Session) error {
	data, err := os.ReadFile(connectObject)
	if err != nil {
		return err
	}
	var props map[string]interface{}
	if err := json.Unmarshal(data, &props); err != nil {
		return fmt.Errorf("invalid object definition %s: %w", connectObject, err)
	}

	obj, err := sess.CreateSessionObject(ctx, sess.Doc(), props)
	if err != nil {
		return err
	}
	layout, err := sess.GetLayout(ctx, obj)
	if err != nil {
		return err
	}
	return renderLayout(out, layout, connectDecode)
}

func renderLayout(out io.Writer, layout *session.Layout, decode string) error {
	switch decode {
	case "kpis":
		row, err := session.DecodeKPIs(layout)
		if err != nil {
			return err
		}
		cli.KeyValue(out, [][2]string{
			{session.TitleRevenue, fmt.Sprintf("%.2f", row.Revenue)},
			{session.TitleMargin, percent(row.Margin)},
			{session.TitleDiscount, percent(row.Discount)},
			{session.TitleLogisticsCost, percent(row.LogisticsCost)},
		})
	case "categories":
		rows, err := session.DecodeCategoryBreakdown(layout)
		if err != nil {
			return err
		}
		t := cli.NewTable(out, "CATEGORY", "PROFIT", "SALES")
		for _, r := range rows {
			t.AppendRow(table.Row{r.Category, money(r.Profit), money(r.Sales)})
		}
		t.Render()
	case "scatter":
		points, err := session.DecodeScatter(layout)
		if err != nil {
			return err
		}
		t := cli.NewTable(out, "CUSTOMER", "SALES", "PROFIT")
		for _, p := range points {
			t.AppendRow(table.Row{p.Name, money(p.Sales), money(p.Profit)})
		}
		t.Render()
	default:
		if layout.HyperCube == nil {
			return errors.New("object layout has no hypercube")
		}
		return renderRaw(out, layout.HyperCube)
	}
	return nil
}

func renderRaw(out io.Writer, cube *session.HyperCube) error {
	var headers []string
	for _, f := range cube.DimensionInfo {
		headers = append(headers, f.FallbackTitle)
	}
	for _, f := range cube.MeasureInfo {
		headers = append(headers, f.FallbackTitle)
	}
	t := cli.NewTable(out, headers...)
	for _, page := range cube.DataPages {
		for _, row := range page.Matrix {
			r := make(table.Row, len(row))
			for i, c := range row {
				r[i] = c.Text
			}
			t.AppendRow(r)
		}
	}
	t.Render()
	return nil
}

func money(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	if v < 0 {
		return text.FgRed.Sprint(s)
	}
	return s
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
