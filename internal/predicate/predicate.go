// Package predicate implements the two predicate variants:
// BooleanPredicate (atomic comparisons composed with AND/OR/NOT, plus
// a LIKE/MATCH sub-variant) and ProximityPredicate (a bound
// nearest-neighbor request). Each is a single tagged struct matched by
// a Kind enum rather than a type hierarchy.
package predicate

import (
	"fmt"
	"strings"

	"github.com/hyperplane-db/hyperplane/internal/distance"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

// CompareOp enumerates the atomic comparison operators a BooleanPredicate leaf may use.
type CompareOp string

const (
	Eq CompareOp = "="
	Ne CompareOp = "!="
	Lt CompareOp = "<"
	Le CompareOp = "<="
	Gt CompareOp = ">"
	Ge CompareOp = ">="
)

// BoolKind tags which variant of BooleanPredicate a node is.
type BoolKind int

const (
	Compare BoolKind = iota
	And
	Or
	Not
	Like  // pattern match with '%'/'_' wildcards
	Match // full-text match, delegated to the (black-box) fulltext index
)

// BooleanPredicate is a small expression tree: Compare/Like/Match are
// leaves referencing one Column; And/Or/Not compose Children.
type BooleanPredicate struct {
	Kind     BoolKind
	Column   string
	Op       CompareOp   // meaningful for Compare
	Value    types.Value // comparison operand (Compare), pattern/query (Like/Match)
	Children []*BooleanPredicate
}

// NewCompare builds an atomic comparison leaf.
func NewCompare(column string, op CompareOp, value types.Value) *BooleanPredicate {
	return &BooleanPredicate{Kind: Compare, Column: column, Op: op, Value: value}
}

// NewLike builds a LIKE leaf; pattern uses SQL-style '%'/'_' wildcards.
func NewLike(column, pattern string) *BooleanPredicate {
	return &BooleanPredicate{Kind: Like, Column: column, Value: types.NewString(pattern)}
}

// NewMatch builds a MATCH leaf delegated to a fulltext index.
func NewMatch(column, query string) *BooleanPredicate {
	return &BooleanPredicate{Kind: Match, Column: column, Value: types.NewString(query)}
}

// NewAnd, NewOr compose two or more predicates.
func NewAnd(children ...*BooleanPredicate) *BooleanPredicate {
	return &BooleanPredicate{Kind: And, Children: children}
}

func NewOr(children ...*BooleanPredicate) *BooleanPredicate {
	return &BooleanPredicate{Kind: Or, Children: children}
}

// NewNot negates child.
func NewNot(child *BooleanPredicate) *BooleanPredicate {
	return &BooleanPredicate{Kind: Not, Children: []*BooleanPredicate{child}}
}

// Columns returns the set of column names this predicate references,
// deduplicated, in first-seen order.
func (p *BooleanPredicate) Columns() []string {
	seen := map[string]bool{}
	var out []string
	var walk func(*BooleanPredicate)
	walk = func(n *BooleanPredicate) {
		if n == nil {
			return
		}
		if n.Column != "" && !seen[n.Column] {
			seen[n.Column] = true
			out = append(out, n.Column)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(p)
	return out
}

// Lookup resolves a column's value for the tuple currently being tested.
type Lookup func(column string) (types.Value, bool, error)

// Eval evaluates p against get, the ambient accessor for the current
// record's column values.
func (p *BooleanPredicate) Eval(get Lookup) (bool, error) {
	if p == nil {
		return true, nil
	}
	switch p.Kind {
	case Compare:
		v, ok, err := get(p.Column)
		if err != nil {
			return false, err
		}
		if !ok || v.Null {
			return false, nil
		}
		return evalCompare(p.Op, v, p.Value)
	case Like:
		v, ok, err := get(p.Column)
		if err != nil {
			return false, err
		}
		if !ok || v.Null {
			return false, nil
		}
		return matchLike(v.Str, p.Value.Str), nil
	case Match:
		// Full-text matching is delegated to the fulltext index
		// collaborator; without one attached this degrades to a
		// substring test so the predicate remains evaluable in
		// isolation (e.g. over a FilterOperator fallback).
		v, ok, err := get(p.Column)
		if err != nil {
			return false, err
		}
		if !ok || v.Null {
			return false, nil
		}
		return strings.Contains(strings.ToLower(v.Str), strings.ToLower(p.Value.Str)), nil
	case And:
		for _, c := range p.Children {
			ok, err := c.Eval(get)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case Or:
		for _, c := range p.Children {
			ok, err := c.Eval(get)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case Not:
		ok, err := p.Children[0].Eval(get)
		if err != nil {
			return false, err
		}
		return !ok, nil
	default:
		return false, fmt.Errorf("predicate: unknown boolean kind %d", p.Kind)
	}
}

func evalCompare(op CompareOp, v, operand types.Value) (bool, error) {
	if op == Eq || op == Ne {
		eq, err := v.Equal(operand)
		if err != nil {
			return false, err
		}
		if op == Eq {
			return eq, nil
		}
		return !eq, nil
	}
	cmp, err := v.Compare(operand)
	if err != nil {
		return false, err
	}
	switch op {
	case Lt:
		return cmp < 0, nil
	case Le:
		return cmp <= 0, nil
	case Gt:
		return cmp > 0, nil
	case Ge:
		return cmp >= 0, nil
	default:
		return false, fmt.Errorf("predicate: unknown compare op %q", op)
	}
}

// matchLike implements SQL LIKE semantics for '%' (any run) and '_'
// (single char) wildcards via a straightforward recursive matcher —
// patterns in practice are short (column filters, not full regexes).
func matchLike(s, pattern string) bool {
	return likeMatch([]rune(s), []rune(pattern))
}

func likeMatch(s, p []rune) bool {
	if len(p) == 0 {
		return len(s) == 0
	}
	switch p[0] {
	case '%':
		if likeMatch(s, p[1:]) {
			return true
		}
		for len(s) > 0 {
			s = s[1:]
			if likeMatch(s, p[1:]) {
				return true
			}
		}
		return false
	case '_':
		if len(s) == 0 {
			return false
		}
		return likeMatch(s[1:], p[1:])
	default:
		if len(s) == 0 || s[0] != p[0] {
			return false
		}
		return likeMatch(s[1:], p[1:])
	}
}

// ProximityPredicate is a top-k nearest-neighbor request: find the k
// tuples of Column closest to Query under Distance.
type ProximityPredicate struct {
	Column   string
	K        int
	Distance distance.Kind
	Query    types.Value // a real vector value of Column's type
}

// NewProximity builds a proximity predicate.
func NewProximity(column string, k int, kind distance.Kind, query types.Value) *ProximityPredicate {
	return &ProximityPredicate{Column: column, K: k, Distance: kind, Query: query}
}

// Columns returns the single column this proximity predicate references.
func (p *ProximityPredicate) Columns() []string { return []string{p.Column} }
