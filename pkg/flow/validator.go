package flow

import (
	"fmt"
	"strings"
)

// LintError describes a structural problem in a canvas.
type LintError struct {
	NodeID  string
	Message string
}

func (e LintError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("node %q: %s", e.NodeID, e.Message)
	}
	return e.Message
}

var knownKinds = map[NodeKind]bool{
	KindText:      true,
	KindImage:     true,
	KindVideo:     true,
	KindComposite: true,
	KindNote:      true,
}

// Validate checks a canvas for structural problems. It returns all
// discovered errors, not just the first. Dangling edges are reported here
// even though Build drops them silently at execution time.
func Validate(c *Canvas) []LintError {
	var errs []LintError

	index := make(map[string]*Node, len(c.Nodes))
	for _, n := range c.Nodes {
		index[n.ID] = n
	}
	hasUpstream := make(map[string]bool)
	for _, e := range c.Edges {
		hasUpstream[e.Target] = true
	}

	for _, n := range c.Nodes {
		if !knownKinds[n.Kind] {
			errs = append(errs, LintError{NodeID: n.ID, Message: fmt.Sprintf("unknown kind %q", n.Kind)})
		}
		if n.Data.SampleCount < 0 || n.Data.SampleCount > 5 {
			errs = append(errs, LintError{NodeID: n.ID, Message: fmt.Sprintf("samples %d out of range [1,5]", n.Data.SampleCount)})
		}
		if n.Kind == KindVideo && n.Data.SampleCount > 1 {
			errs = append(errs, LintError{NodeID: n.ID, Message: "video nodes run one sample per run; extra samples are sequential runs"})
		}
		if n.Kind.Remote() && n.Data.Prompt == "" && n.Data.Derived == "" && !hasUpstream[n.ID] {
			errs = append(errs, LintError{NodeID: n.ID, Message: "remote node has no prompt and no upstream text"})
		}
	}

	for _, e := range c.Edges {
		if _, ok := index[e.Source]; !ok {
			errs = append(errs, LintError{Message: fmt.Sprintf("edge references unknown source node %q", e.Source)})
		}
		if _, ok := index[e.Target]; !ok {
			errs = append(errs, LintError{Message: fmt.Sprintf("edge references unknown target node %q", e.Target)})
		}
	}

	if g := Build(c.Nodes, c.Edges); g.HasCycle() {
		errs = append(errs, LintError{Message: "cycle detected"})
	}

	return errs
}

// ValidateErr calls Validate and returns nil if there are no errors, or a
// combined error message listing all lint errors.
func ValidateErr(c *Canvas) error {
	errs := Validate(c)
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("canvas validation failed:\n  %s", strings.Join(msgs, "\n  "))
}
