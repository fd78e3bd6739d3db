package flow

import (
	"fmt"
	"strconv"
	"strings"

	gographviz "github.com/awalterschulze/gographviz"
)

// Canvas is a parsed .dot canvas file: the node/edge collection plus any
// graph-level stylesheet.
type Canvas struct {
	Name       string
	Nodes      []*Node
	Edges      []Edge
	Stylesheet *Stylesheet
}

// ParseDOT parses a Graphviz DOT string into a Canvas. Node declarations
// carry generation attributes:
//
//	t1 [kind=text, prompt="a red fox", model="openai:gpt-4o", x=0, y=0]
//	i1 [kind=image, samples=2, x=0, y=120]
//	t1 -> i1
func ParseDOT(src string) (*Canvas, error) {
	graphAst, err := gographviz.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("dot parse error: %w", err)
	}

	// Permissive collector: accepts any attribute name without the strict
	// validation gographviz.Graph performs.
	collector := newDOTCollector()
	if err := gographviz.Analyse(graphAst, collector); err != nil {
		return nil, fmt.Errorf("dot analyse error: %w", err)
	}

	c := &Canvas{Name: collector.name}

	for _, id := range collector.order {
		attrs := collector.nodes[id]
		n := &Node{ID: id, Kind: NodeKind(attrs["kind"])}
		if n.Kind == "" {
			n.Kind = KindText // default for untyped nodes
		}
		n.Position.X = parseFloat(attrs["x"])
		n.Position.Y = parseFloat(attrs["y"])
		n.Data.Prompt = attrs["prompt"]
		n.Data.Model = attrs["model"]
		n.Data.Orientation = attrs["orientation"]
		if v := attrs["samples"]; v != "" {
			n.Data.SampleCount, _ = strconv.Atoi(v)
		}
		if v := attrs["duration"]; v != "" {
			n.Data.DurationSec, _ = strconv.Atoi(v)
		}
		c.Nodes = append(c.Nodes, n)
	}

	for _, e := range collector.edges {
		c.Edges = append(c.Edges, Edge{Source: e.from, Target: e.to})
	}

	if raw, ok := collector.graphAttrs["model_stylesheet"]; ok {
		c.Stylesheet = parseStylesheet(raw)
	}

	return c, nil
}

// ─── permissive DOT collector ─────────────────────────────────────────────────

type rawEdge struct {
	from, to string
}

// dotCollector implements gographviz.Interface without attribute validation.
type dotCollector struct {
	name       string
	order      []string // node ids in declaration order
	nodes      map[string]map[string]string
	edges      []rawEdge
	graphAttrs map[string]string
	// defaultNodeAttrs holds attrs set at the graph level (node [...]).
	defaultNodeAttrs map[string]string
}

func newDOTCollector() *dotCollector {
	return &dotCollector{
		nodes:            make(map[string]map[string]string),
		graphAttrs:       make(map[string]string),
		defaultNodeAttrs: make(map[string]string),
	}
}

func (c *dotCollector) SetStrict(_ bool) error { return nil }
func (c *dotCollector) SetDir(_ bool) error    { return nil }
func (c *dotCollector) SetName(n string) error { c.name = unquote(n); return nil }
func (c *dotCollector) String() string         { return c.name }

func (c *dotCollector) AddNode(_ string, name string, attrs map[string]string) error {
	id := unquote(name)
	if _, ok := c.nodes[id]; !ok {
		c.order = append(c.order, id)
		c.nodes[id] = make(map[string]string, len(c.defaultNodeAttrs))
		for k, v := range c.defaultNodeAttrs {
			c.nodes[id][k] = v
		}
	}
	for k, v := range attrs {
		c.nodes[id][k] = unquote(v)
	}
	return nil
}

func (c *dotCollector) AddEdge(src, dst string, _ bool, _ map[string]string) error {
	c.edges = append(c.edges, rawEdge{from: unquote(src), to: unquote(dst)})
	return nil
}

func (c *dotCollector) AddPortEdge(src, _, dst, _ string, directed bool, attrs map[string]string) error {
	return c.AddEdge(src, dst, directed, attrs)
}

func (c *dotCollector) AddAttr(_ string, field, value string) error {
	c.graphAttrs[field] = unquote(value)
	return nil
}

func (c *dotCollector) AddSubGraph(_, _ string, _ map[string]string) error { return nil }

// ─── helpers ─────────────────────────────────────────────────────────────────

// unquote strips surrounding double-quotes from a DOT attribute value and
// resolves \" and \\ escapes inside it.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	if u, err := strconv.Unquote(s); err == nil {
		return u
	}
	// DOT strings allow raw newlines and escapes strconv rejects; fall
	// back to resolving just the quote and backslash escapes.
	return strings.NewReplacer(`\"`, `"`, `\\`, `\`).Replace(s[1 : len(s)-1])
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
