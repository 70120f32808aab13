package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func atom(t string) *Query {
	return &Query{Op: QAnd, Trigram: []string{t}}
}

func TestQueryAndOrIdentities(t *testing.T) {
	a := atom("abc")

	assert.Equal(t, a, allQuery.and(atom("abc")))
	assert.Equal(t, QNone, noneQuery.and(atom("abc")).Op)
	assert.Equal(t, QAll, allQuery.or(atom("abc")).Op)
	assert.Equal(t, a, noneQuery.or(atom("abc")))
}

func TestQueryAtomMerge(t *testing.T) {
	q := atom("abc").and(atom("def"))
	assert.Equal(t, QAnd, q.Op)
	assert.Equal(t, []string{"abc", "def"}, q.Trigram)
	assert.Empty(t, q.Sub)

	q = atom("def").or(atom("abc"))
	assert.Equal(t, QOr, q.Op)
	assert.Equal(t, []string{"abc", "def"}, q.Trigram)
}

func TestQueryImplies(t *testing.T) {
	and := &Query{Op: QAnd, Trigram: []string{"abc", "def"}}
	or := &Query{Op: QOr, Trigram: []string{"abc", "xyz"}}

	// A stronger AND implies a weaker one, and implies an OR naming one
	// of its trigrams.
	assert.True(t, and.implies(&Query{Op: QAnd, Trigram: []string{"abc"}}))
	assert.True(t, and.implies(or))
	assert.False(t, (&Query{Op: QAnd, Trigram: []string{"abc"}}).implies(and))

	// An OR implies a superset OR.
	assert.True(t, (&Query{Op: QOr, Trigram: []string{"abc"}}).implies(or))
	assert.False(t, or.implies(&Query{Op: QOr, Trigram: []string{"abc"}}))

	assert.True(t, noneQuery.implies(and))
	assert.True(t, and.implies(allQuery))
	assert.False(t, allQuery.implies(and))
}

func TestQueryAbsorption(t *testing.T) {
	// q AND r == q when q implies r, and q OR r == r likewise.
	and := &Query{Op: QAnd, Trigram: []string{"abc", "def"}}
	weak := &Query{Op: QAnd, Trigram: []string{"abc"}}

	got := and.and(weak)
	assert.Equal(t, []string{"abc", "def"}, got.Trigram)

	or := (&Query{Op: QAnd, Trigram: []string{"abc", "def"}}).or(&Query{Op: QAnd, Trigram: []string{"abc"}})
	assert.Equal(t, QAnd, or.Op)
	assert.Equal(t, []string{"abc"}, or.Trigram)
}

func TestQueryCommonFactoring(t *testing.T) {
	// (abc|xxx) AND (abc|yyy) == abc | (xxx AND yyy): a file matching
	// both sides either has abc or has both of the others.
	left := &Query{Op: QOr, Trigram: []string{"abc", "xxx"}}
	right := &Query{Op: QOr, Trigram: []string{"abc", "yyy"}}

	q := left.and(right)
	assert.Equal(t, QOr, q.Op)
	assert.Equal(t, []string{"abc"}, q.Trigram)
	if assert.Len(t, q.Sub, 1) {
		assert.Equal(t, QAnd, q.Sub[0].Op)
		assert.Equal(t, []string{"xxx", "yyy"}, q.Sub[0].Trigram)
	}
}

func TestQueryString(t *testing.T) {
	assert.Equal(t, "+", allQuery.String())
	assert.Equal(t, "-", noneQuery.String())
	assert.Equal(t, "abc", atom("abc").String())
	assert.Equal(t, "abc def", (&Query{Op: QAnd, Trigram: []string{"abc", "def"}}).String())
	assert.Equal(t, "(abc|def)", (&Query{Op: QOr, Trigram: []string{"abc", "def"}}).String())
}

func TestStringSetClean(t *testing.T) {
	s := stringSet{"def", "abc", "def", "abc"}
	s.clean(false)
	assert.Equal(t, stringSet{"abc", "def"}, s)
}

func TestStringSetSuffixOrder(t *testing.T) {
	// Suffix order groups strings sharing a tail next to each other.
	s := stringSet{"xbc", "abc", "bc", "zz"}
	s.clean(true)
	assert.Equal(t, stringSet{"bc", "abc", "xbc", "zz"}, s)
}

func TestStringSetCross(t *testing.T) {
	s := stringSet{"a", "b"}
	p := s.cross(stringSet{"x", "y"}, false)
	assert.Equal(t, stringSet{"ax", "ay", "bx", "by"}, p)
}

func TestStringSetMinLen(t *testing.T) {
	assert.Equal(t, 0, stringSet(nil).minLen())
	assert.Equal(t, 2, stringSet{"abc", "de"}.minLen())
}

func TestAndTrigrams(t *testing.T) {
	// A member shorter than a trigram forces the unconstrained query.
	assert.Equal(t, QAll, stringSet{"abcd", "xy"}.andTrigrams().Op)

	q := stringSet{"abcd"}.andTrigrams()
	assert.Equal(t, QAnd, q.Op)
	assert.Equal(t, []string{"abc", "bcd"}, q.Trigram)

	q = stringSet{"abc", "def"}.andTrigrams()
	assert.Equal(t, QOr, q.Op)
	assert.Equal(t, []string{"abc", "def"}, q.Trigram)
}
