package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
)

// Sentinel errors for predicate evaluation and validation.
var (
	ErrUnknownFeature = eris.New("rules: unknown feature")
	ErrKindMismatch   = eris.New("rules: feature kind mismatch")
)

// Predicate is one typed term of a rule condition.
type Predicate interface {
	// Eval reports whether the term holds for f. An error means the term
	// could not be evaluated; the enclosing rule does not fire.
	Eval(f Features) (bool, error)
	// Check verifies the term against a schema without evaluating it.
	Check(s Schema) error
	String() string
}

// Op is a numeric comparison operator.
type Op string

// Comparison operators.
const (
	OpEq Op = "=="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

func (op Op) apply(a, b float64) (bool, error) {
	switch op {
	case OpEq:
		return a == b, nil
	case OpNe:
		return a != b, nil
	case OpLt:
		return a < b, nil
	case OpLe:
		return a <= b, nil
	case OpGt:
		return a > b, nil
	case OpGe:
		return a >= b, nil
	default:
		return false, eris.Errorf("rules: unknown operator %q", string(op))
	}
}

func lookup(f Features, name string, want Kind) (Value, error) {
	v, ok := f.Feature(name)
	if !ok {
		return Value{}, eris.Wrapf(ErrUnknownFeature, "feature %s", name)
	}
	if v.Kind != want {
		return Value{}, eris.Wrapf(ErrKindMismatch, "feature %s is %s, want %s", name, v.Kind, want)
	}
	return v, nil
}

func check(s Schema, name string, want Kind) error {
	k, ok := s[name]
	if !ok {
		return eris.Wrapf(ErrUnknownFeature, "feature %s", name)
	}
	if k != want {
		return eris.Wrapf(ErrKindMismatch, "feature %s is %s, want %s", name, k, want)
	}
	return nil
}

// Compare is a numeric comparison between a feature and a constant.
type Compare struct {
	Feature string
	Op      Op
	Value   float64
}

// Num builds a numeric comparison term.
func Num(feature string, op Op, value float64) Compare {
	return Compare{Feature: feature, Op: op, Value: value}
}

// Eval implements Predicate.
func (c Compare) Eval(f Features) (bool, error) {
	v, err := lookup(f, c.Feature, KindNumber)
	if err != nil {
		return false, err
	}
	return c.Op.apply(v.Num, c.Value)
}

// Check implements Predicate.
func (c Compare) Check(s Schema) error {
	if _, err := c.Op.apply(0, 0); err != nil {
		return err
	}
	return check(s, c.Feature, KindNumber)
}

func (c Compare) String() string {
	return fmt.Sprintf("%s %s %s", c.Feature, c.Op, strconv.FormatFloat(c.Value, 'f', -1, 64))
}

// BoolEq tests a boolean feature against an expected value.
type BoolEq struct {
	Feature string
	Want    bool
}

// Is builds a boolean equality term.
func Is(feature string, want bool) BoolEq {
	return BoolEq{Feature: feature, Want: want}
}

// Eval implements Predicate.
func (b BoolEq) Eval(f Features) (bool, error) {
	v, err := lookup(f, b.Feature, KindBool)
	if err != nil {
		return false, err
	}
	return v.Bool == b.Want, nil
}

// Check implements Predicate.
func (b BoolEq) Check(s Schema) error { return check(s, b.Feature, KindBool) }

func (b BoolEq) String() string {
	return fmt.Sprintf("%s == %t", b.Feature, b.Want)
}

// Contains holds when a string feature contains any of Substrings.
// With FoldCase set both sides are case-folded first.
type Contains struct {
	Feature    string
	Substrings []string
	FoldCase   bool
}

// ContainsAny builds a case-sensitive substring term.
func ContainsAny(feature string, substrings ...string) Contains {
	return Contains{Feature: feature, Substrings: substrings}
}

// ContainsAnyFold builds a case-insensitive substring term.
func ContainsAnyFold(feature string, substrings ...string) Contains {
	return Contains{Feature: feature, Substrings: substrings, FoldCase: true}
}

// Eval implements Predicate.
func (c Contains) Eval(f Features) (bool, error) {
	v, err := lookup(f, c.Feature, KindString)
	if err != nil {
		return false, err
	}
	s := v.Str
	fold := cases.Fold()
	if c.FoldCase {
		s = fold.String(s)
	}
	for _, sub := range c.Substrings {
		if c.FoldCase {
			sub = fold.String(sub)
		}
		if strings.Contains(s, sub) {
			return true, nil
		}
	}
	return false, nil
}

// Check implements Predicate.
func (c Contains) Check(s Schema) error {
	if len(c.Substrings) == 0 {
		return eris.Errorf("rules: contains on %s has no substrings", c.Feature)
	}
	return check(s, c.Feature, KindString)
}

func (c Contains) String() string {
	quoted := make([]string, len(c.Substrings))
	for i, sub := range c.Substrings {
		quoted[i] = strconv.Quote(sub)
	}
	verb := "contains any of"
	if c.FoldCase {
		verb = "contains any of (ignoring case)"
	}
	return fmt.Sprintf("%s %s [%s]", c.Feature, verb, strings.Join(quoted, ", "))
}

// Or holds when at least one of its terms holds. Evaluation stops at the
// first term that holds or fails.
type Or []Predicate

// AnyOf builds a disjunction.
func AnyOf(terms ...Predicate) Or { return Or(terms) }

// Eval implements Predicate.
func (o Or) Eval(f Features) (bool, error) {
	for _, p := range o {
		ok, err := p.Eval(f)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Check implements Predicate.
func (o Or) Check(s Schema) error {
	if len(o) == 0 {
		return eris.New("rules: empty disjunction")
	}
	for _, p := range o {
		if err := p.Check(s); err != nil {
			return err
		}
	}
	return nil
}

func (o Or) String() string {
	parts := make([]string, len(o))
	for i, p := range o {
		parts[i] = p.String()
	}
	return "(" + strings.Join(parts, " or ") + ")"
}
