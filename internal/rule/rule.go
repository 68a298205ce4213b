// Package rule implements the fixed download-filter predicate set named in
// spec §4.2: a DNF boolean formula (outer OR of AND groups of atoms) over
// five fields, evaluated against a fully-enriched Video/Page set to produce
// the should_download boolean. This deliberately uses a closed vocabulary
// of fixed predicates rather than a generic rule DSL interpreter.
package rule

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Field is the closed set of targetable fields (spec §4.2).
type Field string

const (
	FieldTitle     Field = "title"
	FieldTags      Field = "tags"
	FieldFavTime   Field = "fav_time"
	FieldPubTime   Field = "pub_time"
	FieldPageCount Field = "page_count"
)

// Condition is the closed set of atom conditions (spec §4.2).
type Condition string

const (
	CondEquals      Condition = "equals"
	CondContains    Condition = "contains"
	CondIContains   Condition = "icontains"
	CondMatchesRegex Condition = "matches_regex"
	CondPrefix      Condition = "prefix"
	CondSuffix      Condition = "suffix"
	CondGreaterThan Condition = "greater_than"
	CondLessThan    Condition = "less_than"
	CondBetween     Condition = "between"
)

// Atom is one leaf predicate, optionally wrapped in Not (spec §4.2 "any
// atom can be wrapped once in Not").
type Atom struct {
	Field     Field     `json:"field"`
	Condition Condition `json:"condition"`
	Value     string    `json:"value,omitempty"`
	// ValueHigh is the upper bound for Between; unused otherwise.
	ValueHigh string `json:"value_high,omitempty"`
	Not       bool   `json:"not,omitempty"`
}

// Group is an AND of atoms.
type Group struct {
	Atoms []Atom `json:"atoms"`
}

// Rule is an OR of AND groups: a DNF formula (spec §4.2).
type Rule struct {
	Groups []Group `json:"groups"`
}

// Parse decodes a Rule from its JSON AST representation (the form stored in
// VideoSource.DownloadRule).
func Parse(data []byte) (*Rule, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var r Rule
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Target is the fully-enriched record a Rule is evaluated against (spec
// §4.2 "evaluated against a fully-enriched Video and its Pages").
type Target struct {
	Title    string
	Tags     []string
	FavTime  time.Time
	PubTime  time.Time
	PageCount int
}

// Evaluate reports whether t satisfies the rule. A nil Rule or one with no
// groups matches nothing (an absent per-source rule is handled by the
// caller, which should skip evaluation entirely and default
// should_download to true).
func (r *Rule) Evaluate(t Target) bool {
	if r == nil {
		return false
	}
	for _, g := range r.Groups {
		if g.evaluate(t) {
			return true
		}
	}
	return false
}

func (g Group) evaluate(t Target) bool {
	for _, a := range g.Atoms {
		if !a.evaluate(t) {
			return false
		}
	}
	return true
}

func (a Atom) evaluate(t Target) bool {
	result := a.evaluateBase(t)
	if a.Not {
		return !result
	}
	return result
}

// evaluateBase evaluates the atom ignoring Not. tags atoms are satisfied if
// *any* tag matches (spec §4.2). A regex compile error always evaluates to
// false (spec §4.2, §7) rather than propagating an error.
func (a Atom) evaluateBase(t Target) bool {
	switch a.Field {
	case FieldTitle:
		return matchString(a.Condition, t.Title, a.Value, a.ValueHigh)
	case FieldTags:
		for _, tag := range t.Tags {
			if matchString(a.Condition, tag, a.Value, a.ValueHigh) {
				return true
			}
		}
		return false
	case FieldFavTime:
		return matchTime(a.Condition, t.FavTime, a.Value, a.ValueHigh)
	case FieldPubTime:
		return matchTime(a.Condition, t.PubTime, a.Value, a.ValueHigh)
	case FieldPageCount:
		return matchInt(a.Condition, t.PageCount, a.Value, a.ValueHigh)
	default:
		return false
	}
}

func matchString(cond Condition, value, target, targetHigh string) bool {
	switch cond {
	case CondEquals:
		return value == target
	case CondContains:
		return strings.Contains(value, target)
	case CondIContains:
		return strings.Contains(strings.ToLower(value), strings.ToLower(target))
	case CondMatchesRegex:
		re, err := regexp.Compile(target)
		if err != nil {
			return false
		}
		return re.MatchString(value)
	case CondPrefix:
		return strings.HasPrefix(value, target)
	case CondSuffix:
		return strings.HasSuffix(value, target)
	case CondGreaterThan:
		return value > target
	case CondLessThan:
		return value < target
	case CondBetween:
		return value >= target && value <= targetHigh
	default:
		return false
	}
}

func matchTime(cond Condition, value time.Time, target, targetHigh string) bool {
	t, err := time.Parse(time.RFC3339, target)
	if err != nil {
		return false
	}
	switch cond {
	case CondEquals:
		return value.Equal(t)
	case CondGreaterThan:
		return value.After(t)
	case CondLessThan:
		return value.Before(t)
	case CondBetween:
		hi, err := time.Parse(time.RFC3339, targetHigh)
		if err != nil {
			return false
		}
		return !value.Before(t) && !value.After(hi)
	default:
		return false
	}
}

func matchInt(cond Condition, value int, target, targetHigh string) bool {
	n, err := parseInt(target)
	if err != nil {
		return false
	}
	switch cond {
	case CondEquals:
		return value == n
	case CondGreaterThan:
		return value > n
	case CondLessThan:
		return value < n
	case CondBetween:
		hi, err := parseInt(targetHigh)
		if err != nil {
			return false
		}
		return value >= n && value <= hi
	default:
		return false
	}
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}
