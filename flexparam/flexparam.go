// Package flexparam implements the compiler's only extensibility hook:
// a named, lazily-bound expression over a declared parameter list,
// evaluated at compile time against bound values. FlexParams encode
// capacity constraints, bandwidth constraints and user tile hints; the
// body language is a small, total arithmetic/boolean grammar rather
// than a general embedded interpreter.
package flexparam

import "fmt"

// FlexParam is a named expression with a declared parameter list. It is
// created once from a HAG- or user-supplied string and can be Bound and
// evaluated any number of times during search.
type FlexParam struct {
	Name   string
	Params []string
	body   Expr
}

// New parses body and returns a FlexParam named name over params.
func New(name string, params []string, body string) (*FlexParam, error) {
	expr, err := parseExpr(body)
	if err != nil {
		return nil, fmt.Errorf("flexparam %s: %w", name, err)
	}
	return &FlexParam{Name: name, Params: params, body: expr}, nil
}

// Bound is a FlexParam with its declared parameters resolved to
// concrete values, ready for repeated evaluation.
type Bound struct {
	fp  *FlexParam
	env map[string]Value
}

// Bind resolves fp's declared parameters against values. Every
// declared parameter must be present in values.
func (fp *FlexParam) Bind(values map[string]Value) (*Bound, error) {
	for _, name := range fp.Params {
		if _, ok := values[name]; !ok {
			return nil, fmt.Errorf("flexparam %s: missing binding for parameter %q", fp.Name, name)
		}
	}
	return &Bound{fp: fp, env: values}, nil
}

// Evaluate runs the bound expression and returns its Value.
func (b *Bound) Evaluate() (Value, error) {
	v, err := b.fp.body.eval(b.env)
	if err != nil {
		return Value{}, fmt.Errorf("flexparam %s: %w", b.fp.Name, err)
	}
	return v, nil
}

// EvaluateBool runs the bound expression and requires a bool result,
// the shape every constraint and hint predicate uses.
func (b *Bound) EvaluateBool() (bool, error) {
	v, err := b.Evaluate()
	if err != nil {
		return false, err
	}
	if v.Kind != VBool {
		return false, fmt.Errorf("flexparam %s: expected bool result, got %s", b.fp.Name, v)
	}
	return v.Bool, nil
}
