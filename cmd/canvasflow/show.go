package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ananyarao/canvasflow/pkg/flow"
)

func showCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <canvas.dot>",
		Short: "Print a human-readable summary of a canvas",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read file: %w", err)
			}
			c, err := flow.ParseDOT(string(src))
			if err != nil {
				return fmt.Errorf("parse: %w", err)
			}
			flow.ApplyStylesheet(c)

			switch strings.ToLower(format) {
			case "dot":
				fmt.Print(renderDOT(c))
			case "text", "":
				fmt.Print(renderText(c))
			default:
				return fmt.Errorf("unknown format %q: use text or dot", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text or dot")
	return cmd
}

// visualOrder returns node ids in the scheduler's visual ordering so the
// listing matches execution preference.
func visualOrder(c *flow.Canvas) []string {
	g := flow.Build(c.Nodes, c.Edges)
	ids := make([]string, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		ids = append(ids, n.ID)
	}
	g.SortVisual(ids)
	return ids
}

// truncate shortens s to maxLen chars, appending "…" if needed.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "…"
}

// renderText produces the human-readable text summary.
func renderText(c *flow.Canvas) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Canvas: %s  (%d nodes, %d edges)\n", c.Name, len(c.Nodes), len(c.Edges))

	index := make(map[string]*flow.Node, len(c.Nodes))
	maxIDLen := 4
	for _, n := range c.Nodes {
		index[n.ID] = n
		if len(n.ID) > maxIDLen {
			maxIDLen = len(n.ID)
		}
	}

	fmt.Fprintf(&sb, "\nNodes:\n")
	for _, id := range visualOrder(c) {
		n := index[id]
		var attrParts []string
		if n.Data.Model != "" {
			attrParts = append(attrParts, "model="+n.Data.Model)
		}
		if n.Data.SampleCount > 1 {
			attrParts = append(attrParts, fmt.Sprintf("samples=%d", n.Data.SampleCount))
		}
		if n.Data.DurationSec > 0 {
			attrParts = append(attrParts, fmt.Sprintf("duration=%d", n.Data.DurationSec))
		}
		if n.Data.Prompt != "" {
			attrParts = append(attrParts, "prompt="+truncate(n.Data.Prompt, 60))
		}
		fmt.Fprintf(&sb, "  %-*s  %-10s  %s\n", maxIDLen, id, string(n.Kind), strings.Join(attrParts, " "))
	}

	fmt.Fprintf(&sb, "\nEdges:\n")
	maxFromLen := 4
	for _, e := range c.Edges {
		if len(e.Source) > maxFromLen {
			maxFromLen = len(e.Source)
		}
	}
	for _, e := range c.Edges {
		fmt.Fprintf(&sb, "  %-*s  →  %s\n", maxFromLen, e.Source, e.Target)
	}

	return sb.String()
}

// dotQuote returns the value as a DOT-safe string, quoting if necessary.
func dotQuote(s string) string {
	needsQuote := s == "" ||
		strings.ContainsAny(s, " \t\n\\\"{}[]<>=;,:")
	if needsQuote {
		escaped := strings.ReplaceAll(s, `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, `"`, `\"`)
		return `"` + escaped + `"`
	}
	return s
}

// renderDOT produces a canonical DOT digraph string.
func renderDOT(c *flow.Canvas) string {
	var sb strings.Builder

	name := c.Name
	if name == "" {
		name = "canvas"
	}
	fmt.Fprintf(&sb, "digraph %s {\n", dotQuote(name))

	index := make(map[string]*flow.Node, len(c.Nodes))
	for _, n := range c.Nodes {
		index[n.ID] = n
	}
	for _, id := range visualOrder(c) {
		n := index[id]
		parts := []string{"kind=" + dotQuote(string(n.Kind))}
		if n.Data.Prompt != "" {
			parts = append(parts, "prompt="+dotQuote(n.Data.Prompt))
		}
		if n.Data.Model != "" {
			parts = append(parts, "model="+dotQuote(n.Data.Model))
		}
		if n.Data.SampleCount > 0 {
			parts = append(parts, fmt.Sprintf("samples=%d", n.Data.SampleCount))
		}
		if n.Data.DurationSec > 0 {
			parts = append(parts, fmt.Sprintf("duration=%d", n.Data.DurationSec))
		}
		parts = append(parts,
			fmt.Sprintf("x=%g", n.Position.X),
			fmt.Sprintf("y=%g", n.Position.Y))
		fmt.Fprintf(&sb, "    %s [%s]\n", dotQuote(id), strings.Join(parts, " "))
	}

	for _, e := range c.Edges {
		fmt.Fprintf(&sb, "    %s -> %s\n", dotQuote(e.Source), dotQuote(e.Target))
	}

	fmt.Fprintf(&sb, "}\n")
	return sb.String()
}
