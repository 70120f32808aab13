package index

import (
	"fmt"
	"regexp"
	"regexp/syntax"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustQuery(t *testing.T, expr string) *Query {
	t.Helper()
	re, err := syntax.Parse(expr, syntax.Perl)
	require.NoError(t, err)
	return RegexpQuery(re)
}

func TestRegexpQueryStrings(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"abcdef", "abc bcd cde def"},
		{"Abcdef", "Abc bcd cde def"},
		{"a(bc)d", "abc bcd"},
		{"(abc)(def)", "abc bcd cde def"},
		{"abc|def", "(abc|def)"},
		{"(abc)+", "abc"},
		{"abc.*def", "abc def"},
		{"wor.d", "wor"},
		{"g[lo]o", "(glo|goo)"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, mustQuery(t, tt.expr).String())
		})
	}
}

func TestRegexpQueryUnconstrained(t *testing.T) {
	// Nothing at least three bytes long is guaranteed, so these must
	// degrade to "match everything" rather than lose true matches.
	exprs := []string{"", "a", "ab", ".", ".*", "a*", "a|b", "[a-z]", "(ab)*", "a?b"}
	for _, expr := range exprs {
		t.Run(fmt.Sprintf("%q", expr), func(t *testing.T) {
			assert.Equal(t, QAll, mustQuery(t, expr).Op)
		})
	}
}

func TestRegexpQueryNoMatch(t *testing.T) {
	q := RegexpQuery(&syntax.Regexp{Op: syntax.OpNoMatch})
	assert.Equal(t, QNone, q.Op)
}

func TestRegexpQueryAnchorsIgnored(t *testing.T) {
	// Anchors restrict position, not content; the trigrams survive.
	assert.Equal(t, "ell hel llo", mustQuery(t, "^hello$").String())
}

func TestRegexpQuerySoundness(t *testing.T) {
	contents := map[string]string{
		"/s/a.txt": "hello world\n",
		"/s/b.txt": "goodbye world\n",
		"/s/c.go":  "package main\nfunc main() { go run(42) }\n",
		"/s/d.txt": "HELLO THERE\n",
		"/s/e.txt": "aaaa bbbb cccc\n",
		"/s/f.txt": "nananana batman\n",
	}
	ix := mustOpen(t, buildIndex(t, contents))

	exprs := []string{
		"hello",
		"hello|goodbye",
		"wor.d",
		"w.rld",
		"(na)+",
		"(na){2,}",
		"g[ol]o",
		"hel+o",
		"(?i)hello",
		"world$",
		"^package",
		"a{2,4}",
		"batman|run\\(42\\)",
		"[hg]ello",
		"b+ c+",
		"ma(in|n)",
	}

	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			re, err := syntax.Parse(expr, syntax.Perl)
			require.NoError(t, err)
			q := RegexpQuery(re)

			candidates, err := ix.PostingQuery(q)
			require.NoError(t, err)

			matcher := regexp.MustCompile(expr)
			for name, content := range contents {
				if !matcher.MatchString(content) {
					continue
				}
				id, err := ix.FileID(name)
				require.NoError(t, err)
				assert.True(t, candidates.Contains(uint32(id)),
					"candidates for %q must include %s", expr, name)
			}
		})
	}
}

func TestRegexpQuerySelectivity(t *testing.T) {
	// The point of the planner: a plain literal narrows the candidate
	// set to the files that actually hold its trigrams.
	contents := map[string]string{
		"/s/a.txt": "hello world",
		"/s/b.txt": "goodbye world",
	}
	ix := mustOpen(t, buildIndex(t, contents))

	candidates, err := ix.PostingQuery(mustQuery(t, "hello"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, candidates.ToArray())

	candidates, err = ix.PostingQuery(mustQuery(t, "goodbye"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, candidates.ToArray())

	candidates, err = ix.PostingQuery(mustQuery(t, "world"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1}, candidates.ToArray())

	candidates, err = ix.PostingQuery(mustQuery(t, "absent"))
	require.NoError(t, err)
	assert.True(t, candidates.IsEmpty())
}
