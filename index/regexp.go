package index

import (
	"regexp/syntax"
	"strings"
	"unicode"
)

// Deriving a trigram Query from a regular expression.
//
// For each sub-expression the analysis tracks a summary of the strings
// it can match: whether the empty string matches, the exact set of
// matched strings when it is small enough to enumerate, otherwise sets
// of possible prefixes and suffixes, plus a Query every match is known
// to satisfy. Concatenation crosses exact sets and derives boundary
// trigrams from suffix×prefix products, alternation unions the
// summaries, and anything unbounded or shorter than three bytes
// degrades to "no constraint". The analysis only ever weakens a
// constraint, never strengthens one, so the final Query can exclude a
// matching file in no case.

const (
	// maxExact bounds the number of strings tracked exactly before the
	// summary degrades to prefix/suffix sets.
	maxExact = 7
	// maxSet bounds the prefix and suffix sets; larger sets are cut
	// down to shorter strings.
	maxSet = 20
)

// RegexpQuery returns a Query that matches a superset of the files the
// regular expression can match. Evaluate it with Index.PostingQuery and
// run the actual regexp only over the resulting candidates.
func RegexpQuery(re *syntax.Regexp) *Query {
	info := analyze(re)
	info.simplify(true)
	info.addExact()
	return info.match
}

// A regexpInfo summarizes the set of strings matched by a regexp.
type regexpInfo struct {
	// canEmpty records whether the empty string is in the match set.
	canEmpty bool

	// exact is the exact set of matched strings, valid only when it is
	// non-nil. When exact is nil, prefix and suffix hold possible match
	// prefixes and suffixes instead.
	exact  stringSet
	prefix stringSet
	suffix stringSet

	// match is a query satisfied by every matched string, not counting
	// what can still be derived from the sets above.
	match *Query
}

// anyMatchInfo matches anything.
func anyMatchInfo() regexpInfo {
	return regexpInfo{canEmpty: true, prefix: stringSet{""}, suffix: stringSet{""}, match: allQuery}
}

// anyCharInfo matches any single character.
func anyCharInfo() regexpInfo {
	return regexpInfo{prefix: stringSet{""}, suffix: stringSet{""}, match: allQuery}
}

// noMatchInfo matches nothing.
func noMatchInfo() regexpInfo {
	return regexpInfo{match: noneQuery}
}

// emptyInfo matches only the empty string.
func emptyInfo() regexpInfo {
	return regexpInfo{canEmpty: true, exact: stringSet{""}, match: allQuery}
}

func analyze(re *syntax.Regexp) (ret regexpInfo) {
	var info regexpInfo
	switch re.Op {
	case syntax.OpNoMatch:
		return noMatchInfo()

	case syntax.OpEmptyMatch,
		syntax.OpBeginLine, syntax.OpEndLine,
		syntax.OpBeginText, syntax.OpEndText,
		syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return emptyInfo()

	case syntax.OpLiteral:
		if re.Flags&syntax.FoldCase != 0 {
			switch len(re.Rune) {
			case 0:
				return emptyInfo()
			case 1:
				// Single-rune case-insensitive literal is a small
				// character class.
				re1 := &syntax.Regexp{Op: syntax.OpCharClass}
				re1.Rune = re1.Rune0[:0]
				r0 := re.Rune[0]
				re1.Rune = append(re1.Rune, r0, r0)
				for r1 := unicode.SimpleFold(r0); r1 != r0; r1 = unicode.SimpleFold(r1) {
					re1.Rune = append(re1.Rune, r1, r1)
				}
				return analyze(re1)
			}
			// Multi-rune folded literal: concatenation of the
			// single-rune cases.
			re1 := &syntax.Regexp{Op: syntax.OpLiteral, Flags: syntax.FoldCase}
			info = emptyInfo()
			for i := range re.Rune {
				re1.Rune = re.Rune[i : i+1]
				info = concat(info, analyze(re1))
			}
			return info
		}
		info.exact = stringSet{string(re.Rune)}
		info.match = allQuery

	case syntax.OpAnyCharNotNL, syntax.OpAnyChar:
		return anyCharInfo()

	case syntax.OpCapture:
		return analyze(re.Sub[0])

	case syntax.OpConcat:
		info = emptyInfo()
		for _, sub := range re.Sub {
			info = concat(info, analyze(sub))
		}
		return info

	case syntax.OpAlternate:
		info = noMatchInfo()
		for _, sub := range re.Sub {
			info = alternate(info, analyze(sub))
		}
		return info

	case syntax.OpQuest:
		return alternate(analyze(re.Sub[0]), emptyInfo())

	case syntax.OpStar:
		// x* is x+ or empty.
		return alternate(analyze(&syntax.Regexp{Op: syntax.OpPlus, Sub: re.Sub}), emptyInfo())

	case syntax.OpRepeat:
		if re.Min == 0 {
			return analyze(&syntax.Regexp{Op: syntax.OpStar, Sub: re.Sub})
		}
		// x{2,5} matches at least one x, which is all the unbounded
		// analysis can use.
		return analyze(&syntax.Regexp{Op: syntax.OpPlus, Sub: re.Sub})

	case syntax.OpPlus:
		// At least one x, so prefixes and suffixes survive but exact
		// strings do not: the match may repeat.
		info = analyze(re.Sub[0])
		if info.exact.have() {
			info.prefix = info.exact
			info.suffix = info.exact.copy()
			info.exact = nil
		}

	case syntax.OpCharClass:
		info.match = allQuery
		if len(re.Rune) == 0 {
			return noMatchInfo()
		}
		if len(re.Rune) == 2 && re.Rune[0] == re.Rune[1] {
			info.exact = stringSet{string(re.Rune[0])}
			break
		}
		n := 0
		for i := 0; i < len(re.Rune); i += 2 {
			n += int(re.Rune[i+1] - re.Rune[i] + 1)
		}
		// A wide class carries almost no information; treat it as any
		// character rather than enumerate it.
		if n > 4 {
			return anyCharInfo()
		}
		var exact stringSet
		for i := 0; i < len(re.Rune); i += 2 {
			for r := re.Rune[i]; r <= re.Rune[i+1]; r++ {
				exact.add(string(r))
			}
		}
		info.exact = exact

	default:
		return anyMatchInfo()
	}

	info.simplify(false)
	return info
}

// concat summarizes the concatenation xy.
func concat(x, y regexpInfo) (out regexpInfo) {
	out.match = x.match.and(y.match)
	if x.exact.have() && y.exact.have() {
		out.exact = x.exact.cross(y.exact, false)
	} else {
		if x.exact.have() {
			out.prefix = x.exact.cross(y.prefix, false)
		} else {
			out.prefix = x.prefix
			if x.canEmpty {
				out.prefix = out.prefix.union(y.prefix, false)
			}
		}
		if y.exact.have() {
			out.suffix = x.suffix.cross(y.exact, true)
		} else {
			out.suffix = y.suffix
			if y.canEmpty {
				out.suffix = out.suffix.union(x.suffix, true)
			}
		}
	}

	// Every match contains some string from x.suffix × y.prefix. When
	// all of those are at least three bytes, one of their trigrams has
	// to appear, over and above whatever out's own sets will yield.
	if !x.exact.have() && !y.exact.have() &&
		x.suffix.size() <= maxSet && y.prefix.size() <= maxSet &&
		x.suffix.minLen()+y.prefix.minLen() >= 3 {
		out.match = out.match.and(x.suffix.cross(y.prefix, false).andTrigrams())
	}

	out.canEmpty = x.canEmpty && y.canEmpty
	out.simplify(false)
	return out
}

// alternate summarizes the alternation x|y.
func alternate(x, y regexpInfo) (out regexpInfo) {
	switch {
	case x.exact.have() && y.exact.have():
		out.exact = x.exact.union(y.exact, false)
	case x.exact.have():
		out.prefix = x.exact.copy().union(y.prefix, false)
		out.suffix = x.exact.copy().union(y.suffix, true)
		x.addExact()
	case y.exact.have():
		out.prefix = x.prefix.union(y.exact.copy(), false)
		out.suffix = x.suffix.union(y.exact.copy(), true)
		y.addExact()
	default:
		out.prefix = x.prefix.union(y.prefix, false)
		out.suffix = x.suffix.union(y.suffix, true)
	}
	out.canEmpty = x.canEmpty || y.canEmpty
	out.match = x.match.or(y.match)
	out.simplify(false)
	return out
}

// addExact folds the trigrams of the exact set into the match query.
func (info *regexpInfo) addExact() {
	if info.exact.have() {
		info.match = info.match.and(info.exact.andTrigrams())
	}
}

// simplify keeps the summary bounded. When the exact set grows too big
// or its strings too long, its trigrams move into match and its edges
// into prefix and suffix; oversized prefix and suffix sets are cut down
// to shorter strings.
func (info *regexpInfo) simplify(force bool) {
	info.exact.clean(false)
	if len(info.exact) > maxExact || (info.exact.minLen() >= 3 && force) || info.exact.minLen() >= 4 {
		info.addExact()
		for _, s := range info.exact {
			n := len(s)
			if n < 3 {
				info.prefix.add(s)
				info.suffix.add(s)
			} else {
				info.prefix.add(s[:2])
				info.suffix.add(s[n-2:])
			}
		}
		info.exact = nil
	}

	if !info.exact.have() {
		info.simplifySet(&info.prefix)
		info.simplifySet(&info.suffix)
	}
}

// simplifySet reduces a prefix or suffix set, harvesting its trigrams
// into the match query first so no information is thrown away unused.
func (info *regexpInfo) simplifySet(s *stringSet) {
	t := *s
	isSuffix := s == &info.suffix
	t.clean(isSuffix)

	info.match = info.match.and(t.andTrigrams())

	// Cut the set down to strings of at most two bytes. Anything longer
	// already contributed its trigrams above; the two-byte edges are
	// all concat needs for boundary analysis.
	for n := 3; n == 3 || t.size() > maxSet; n-- {
		w := 0
		for _, str := range t {
			if len(str) >= n {
				if isSuffix {
					str = str[len(str)-n+1:]
				} else {
					str = str[:n-1]
				}
			}
			if w == 0 || t[w-1] != str {
				t[w] = str
				w++
			}
		}
		t = t[:w]
		t.clean(isSuffix)
	}

	// A string with a shorter set member as its prefix (or suffix) is
	// redundant: the sets are sorted so the shorter one sits first.
	hasEdge := strings.HasPrefix
	if isSuffix {
		hasEdge = strings.HasSuffix
	}
	w := 0
	for _, str := range t {
		if w == 0 || !hasEdge(str, t[w-1]) {
			t[w] = str
			w++
		}
	}
	*s = t[:w]
}
