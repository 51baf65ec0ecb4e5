package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sokinpui/snipsync/model"
)

var (
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	InfoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))
	PathStyle    = lipgloss.NewStyle()
	FaintStyle   = lipgloss.NewStyle().Faint(true)
)

func Info(format string, a ...any) {
	fmt.Fprintln(os.Stderr, InfoStyle.Render(fmt.Sprintf(format, a...)))
}

func Warning(format string, a ...any) {
	fmt.Fprintln(os.Stderr, WarningStyle.Render(fmt.Sprintf(format, a...)))
}

func Error(format string, a ...any) {
	fmt.Fprintln(os.Stderr, ErrorStyle.Render(fmt.Sprintf(format, a...)))
}

// --- Summaries ---

var titles = map[model.Operation]string{
	model.OpApply: "Update Summary",
	model.OpUndo:  "Revert Summary",
	model.OpRedo:  "Redo Summary",
}

// RenderSummary formats the assistant message and every outcome. Failed
// outcomes carry their reason.
func RenderSummary(s model.Summary) string {
	var b strings.Builder

	if s.Message != "" {
		b.WriteString(HeaderStyle.Render(s.Message))
		b.WriteString("\n\n")
	}

	sections := []struct {
		label string
		paths []string
	}{
		{"Created", s.Created()},
		{"Edited", s.Edited()},
		{"Removed", s.Removed()},
	}

	hasContent := false
	for _, sec := range sections {
		if len(sec.paths) == 0 {
			continue
		}
		if !hasContent {
			writeTitle(&b, s.Operation)
		}
		hasContent = true
		b.WriteString(SuccessStyle.Render(fmt.Sprintf("%s %d file(s):", sec.label, len(sec.paths))))
		b.WriteString("\n")
		for _, p := range sec.paths {
			fmt.Fprintf(&b, "  - %s\n", PathStyle.Render(p))
		}
	}

	if failed := s.Failed(); len(failed) > 0 {
		if !hasContent {
			writeTitle(&b, s.Operation)
		}
		hasContent = true
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("Failed %d file(s):", len(failed))))
		b.WriteString("\n")
		for _, o := range failed {
			fmt.Fprintf(&b, "  - %s %s\n", PathStyle.Render(o.Path), FaintStyle.Render("("+reason(o)+")"))
		}
	}

	if !hasContent && s.Message == "" {
		b.WriteString(FaintStyle.Render("Nothing to do."))
		b.WriteString("\n")
	}
	return b.String()
}

func writeTitle(b *strings.Builder, op model.Operation) {
	title, ok := titles[op]
	if !ok {
		title = "Summary"
	}
	b.WriteString(HeaderStyle.Render("--- " + title + " ---"))
	b.WriteString("\n")
}

func reason(o model.EditOutcome) string {
	if o.Detail != "" {
		return o.Detail
	}
	return o.Err.Describe()
}

// PrintSummary writes the rendered summary to w.
func PrintSummary(w io.Writer, s model.Summary) {
	fmt.Fprint(w, RenderSummary(s))
}

// PrintJSON writes the summary as indented JSON to w.
func PrintJSON(w io.Writer, s model.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	return nil
}
