package rule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateOuterOr(t *testing.T) {
	r := &Rule{Groups: []Group{
		{Atoms: []Atom{{Field: FieldTitle, Condition: CondContains, Value: "never-matches"}}},
		{Atoms: []Atom{{Field: FieldTitle, Condition: CondContains, Value: "foo"}}},
	}}
	assert.True(t, r.Evaluate(Target{Title: "a foo video"}))
	assert.False(t, r.Evaluate(Target{Title: "nothing here"}))
}

func TestEvaluateInnerAnd(t *testing.T) {
	r := &Rule{Groups: []Group{
		{Atoms: []Atom{
			{Field: FieldTitle, Condition: CondContains, Value: "foo"},
			{Field: FieldPageCount, Condition: CondGreaterThan, Value: "1"},
		}},
	}}
	assert.True(t, r.Evaluate(Target{Title: "foo", PageCount: 2}))
	assert.False(t, r.Evaluate(Target{Title: "foo", PageCount: 1}))
}

func TestEvaluateNot(t *testing.T) {
	r := &Rule{Groups: []Group{
		{Atoms: []Atom{{Field: FieldTitle, Condition: CondContains, Value: "foo", Not: true}}},
	}}
	assert.False(t, r.Evaluate(Target{Title: "a foo video"}))
	assert.True(t, r.Evaluate(Target{Title: "bar video"}))
}

func TestEvaluateTagsAnyMatch(t *testing.T) {
	r := &Rule{Groups: []Group{
		{Atoms: []Atom{{Field: FieldTags, Condition: CondEquals, Value: "b"}}},
	}}
	assert.True(t, r.Evaluate(Target{Tags: []string{"a", "b", "c"}}))
	assert.False(t, r.Evaluate(Target{Tags: []string{"a", "c"}}))
}

func TestEvaluateInvalidRegexIsFalseNotError(t *testing.T) {
	r := &Rule{Groups: []Group{
		{Atoms: []Atom{{Field: FieldTitle, Condition: CondMatchesRegex, Value: "("}}},
	}}
	assert.False(t, r.Evaluate(Target{Title: "anything"}))
}

func TestEvaluateBetweenTime(t *testing.T) {
	lo := "2020-01-01T00:00:00Z"
	hi := "2020-12-31T00:00:00Z"
	r := &Rule{Groups: []Group{
		{Atoms: []Atom{{Field: FieldPubTime, Condition: CondBetween, Value: lo, ValueHigh: hi}}},
	}}
	mid := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	out := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, r.Evaluate(Target{PubTime: mid}))
	assert.False(t, r.Evaluate(Target{PubTime: out}))
}

func TestEvaluateNilRule(t *testing.T) {
	var r *Rule
	assert.False(t, r.Evaluate(Target{Title: "anything"}))
}

func TestParseEmpty(t *testing.T) {
	r, err := Parse(nil)
	assert.NoError(t, err)
	assert.Nil(t, r)
}
