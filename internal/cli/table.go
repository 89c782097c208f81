package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// NewTable creates a table writer with the standard style, writing to out.
func NewTable(out io.Writer, headers ...string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)

	row := make(table.Row, len(headers))
	for i, h := range headers {
		row[i] = text.FgHiCyan.Sprint(h)
	}
	if len(row) > 0 {
		t.AppendHeader(row)
	}
	return t
}

// KeyValue renders pairs as a two column table.
func KeyValue(out io.Writer, pairs [][2]string) {
	t := NewTable(out)
	for _, p := range pairs {
		t.AppendRow(table.Row{text.FgHiCyan.Sprint(p[0]), p[1]})
	}
	t.Render()
}

// OK formats a success marker.
func OK(msg string) string {
	return fmt.Sprintf("%s %s", text.FgGreen.Sprint("✓"), msg)
}

// Warning formats a warning marker.
func Warning(msg string) string {
	return fmt.Sprintf("%s %s", text.FgYellow.Sprint("!"), msg)
}

// Failure formats a failure marker.
func Failure(msg string) string {
	return fmt.Sprintf("%s %s", text.FgRed.Sprint("✗"), msg)
}
