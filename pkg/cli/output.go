package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"mercator-hq/rotor/pkg/credentials"
	"mercator-hq/rotor/pkg/telemetry/logging"
)

// OutputFormat selects how command results are rendered.
type OutputFormat string

const (
	// FormatTable renders an aligned table (default).
	FormatTable OutputFormat = "table"
	// FormatJSON renders indented JSON.
	FormatJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table or json)", s)
	}
}

// CredentialView controls how credentials are rendered.
type CredentialView struct {
	Format OutputFormat

	// Reveal prints full credential ids instead of redacted ones.
	Reveal bool
}

// RenderCredentials writes creds to w.
func RenderCredentials(w io.Writer, creds []credentials.Credential, view CredentialView) error {
	if !view.Reveal {
		redacted := make([]credentials.Credential, len(creds))
		for i, c := range creds {
			c.ID = logging.RedactAPIKey(c.ID)
			redacted[i] = c
		}
		creds = redacted
	}

	if view.Format == FormatJSON {
		if creds == nil {
			creds = []credentials.Credential{}
		}
		return writeJSON(w, creds)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Key", "Added", "OK", "Errors", "Streak", "Streak Since", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})

	var active int
	for _, c := range creds {
		status := "active"
		if c.Removed {
			status = "removed"
		} else {
			active++
		}
		added := c.AddedAt
		t.AppendRow(table.Row{
			c.ID,
			credentials.FormatTimestamp(&added),
			c.SuccessCount,
			c.ErrorCount,
			c.ErrorsSinceLastSuccess,
			credentials.FormatTimestamp(c.FirstErrorAt),
			status,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "active", strconv.Itoa(active) + "/" + strconv.Itoa(len(creds))})
	t.Render()
	return nil
}

// RenderSnapshot writes a pool summary to w.
func RenderSnapshot(w io.Writer, snap credentials.PoolSnapshot, format OutputFormat) error {
	if format == FormatJSON {
		return writeJSON(w, map[string]any{
			"total":         snap.Total,
			"active":        snap.Active,
			"removed":       snap.Removed,
			"failing":       snap.Failing,
			"success_count": snap.SuccessCount,
			"error_count":   snap.ErrorCount,
		})
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Total", "Active", "Removed", "Failing", "OK", "Errors"})
	t.AppendRow(table.Row{snap.Total, snap.Active, snap.Removed, snap.Failing, snap.SuccessCount, snap.ErrorCount})
	t.Render()
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
