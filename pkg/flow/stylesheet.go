package flow

import "strings"

// Stylesheet holds CSS-like default-model rules keyed by node kind.
type Stylesheet struct {
	Rules []StyleRule
}

// StyleRule applies a model to nodes matching a selector.
type StyleRule struct {
	Selector string // e.g. "kind[text]" or "*"
	Model    string
}

// parseStylesheet parses a simple CSS-like model stylesheet.
// Example: `kind[video] { model: "kling:kling-v1-6" }`
func parseStylesheet(src string) *Stylesheet {
	ss := &Stylesheet{}
	src = strings.TrimSpace(src)
	parts := strings.Split(src, "}")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		braceIdx := strings.Index(part, "{")
		if braceIdx < 0 {
			continue
		}
		selector := strings.TrimSpace(part[:braceIdx])
		body := strings.TrimSpace(part[braceIdx+1:])
		rule := StyleRule{Selector: selector}
		for _, line := range strings.Split(body, ";") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			kv := strings.SplitN(line, ":", 2)
			if len(kv) != 2 {
				continue
			}
			k := strings.TrimSpace(kv[0])
			v := strings.Trim(strings.TrimSpace(kv[1]), `"`)
			if k == "model" {
				rule.Model = v
			}
		}
		ss.Rules = append(ss.Rules, rule)
	}
	return ss
}

// ApplyStylesheet fills in each node's model from the canvas stylesheet
// when the node does not set one explicitly. A "kind[x]" selector matches
// nodes of kind x; "*" matches all nodes.
func ApplyStylesheet(c *Canvas) {
	if c.Stylesheet == nil {
		return
	}
	for _, n := range c.Nodes {
		if n.Data.Model != "" {
			continue
		}
		for _, rule := range c.Stylesheet.Rules {
			if rule.Model == "" {
				continue
			}
			if rule.Selector == "*" || rule.Selector == "kind["+string(n.Kind)+"]" {
				n.Data.Model = rule.Model
				break
			}
		}
	}
}
