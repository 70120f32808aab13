package index

import (
	"slices"
	"strconv"
	"strings"
)

// QueryOp is the operator at a Query node.
type QueryOp int

const (
	// QAll matches every file. It means no trigram constraint could be
	// derived, so the branch is a no-op filter.
	QAll QueryOp = iota
	// QNone matches no file.
	QNone
	// QAnd requires every listed trigram and every sub-query.
	QAnd
	// QOr requires at least one listed trigram or sub-query.
	QOr
)

// A Query is a boolean constraint over trigrams. A file can match the
// regular expression a Query was derived from only if it satisfies the
// Query, so evaluating it against posting lists yields a candidate set
// that is a superset of the true matches.
type Query struct {
	Op      QueryOp
	Trigram []string
	Sub     []*Query
}

var (
	allQuery  = &Query{Op: QAll}
	noneQuery = &Query{Op: QNone}
)

func (q *Query) and(r *Query) *Query { return q.andOr(r, QAnd) }
func (q *Query) or(r *Query) *Query  { return q.andOr(r, QOr) }

func otherOp(op QueryOp) QueryOp {
	if op == QAnd {
		return QOr
	}
	return QAnd
}

// andOr returns q AND r or q OR r, simplifying where it can. It may
// reuse and modify q's and r's storage.
func (q *Query) andOr(r *Query, op QueryOp) *Query {
	if len(q.Trigram) == 0 && len(q.Sub) == 1 {
		q = q.Sub[0]
	}
	if len(r.Trigram) == 0 && len(r.Sub) == 1 {
		r = r.Sub[0]
	}

	// If q implies r, then q AND r == q and q OR r == r, and vice versa.
	// This also absorbs QAll and QNone operands.
	if q.implies(r) {
		if op == QAnd {
			return q
		}
		return r
	}
	if r.implies(q) {
		if op == QAnd {
			return r
		}
		return q
	}

	// A node with a single trigram and no children reads the same under
	// either operator, so it can merge into anything.
	qAtom := len(q.Trigram) == 1 && len(q.Sub) == 0
	rAtom := len(r.Trigram) == 1 && len(r.Sub) == 0

	if q.Op == op && (r.Op == op || rAtom) {
		q.Trigram = stringSet(q.Trigram).union(r.Trigram, false)
		q.Sub = append(q.Sub, r.Sub...)
		return q
	}
	if r.Op == op && qAtom {
		r.Trigram = stringSet(r.Trigram).union(q.Trigram, false)
		return r
	}
	if qAtom && rAtom {
		q.Op = op
		q.Trigram = stringSet(q.Trigram).union(r.Trigram, false)
		return q
	}
	if q.Op == op {
		q.Sub = append(q.Sub, r)
		return q
	}
	if r.Op == op {
		r.Sub = append(r.Sub, q)
		return r
	}

	// Combining an AND of ORs or an OR of ANDs. Factor out trigrams the
	// two operands share: (abc|x) AND (abc|y) == abc | (x AND y), and
	// dually for OR of ANDs. Both trigram lists are sorted, so this is
	// a merge pass that leaves the leftovers behind in q and r.
	var common stringSet
	i, j := 0, 0
	wi, wj := 0, 0
	for i < len(q.Trigram) && j < len(r.Trigram) {
		qt, rt := q.Trigram[i], r.Trigram[j]
		switch {
		case qt < rt:
			q.Trigram[wi] = qt
			wi++
			i++
		case rt < qt:
			r.Trigram[wj] = rt
			wj++
			j++
		default:
			common = append(common, qt)
			i++
			j++
		}
	}
	for ; i < len(q.Trigram); i++ {
		q.Trigram[wi] = q.Trigram[i]
		wi++
	}
	for ; j < len(r.Trigram); j++ {
		r.Trigram[wj] = r.Trigram[j]
		wj++
	}
	q.Trigram = q.Trigram[:wi]
	r.Trigram = r.Trigram[:wj]
	if len(common) > 0 {
		s := &Query{Op: otherOp(op), Trigram: common}
		return s.andOr(q.andOr(r, op), otherOp(op))
	}

	return &Query{Op: op, Sub: []*Query{q, r}}
}

// implies reports whether any file satisfying q also satisfies r.
// It may conservatively return false.
func (q *Query) implies(r *Query) bool {
	if q.Op == QNone || r.Op == QAll {
		return true
	}
	if q.Op == QAll || r.Op == QNone {
		return false
	}

	if q.Op == QAnd || (q.Op == QOr && len(q.Trigram) == 1 && len(q.Sub) == 0) {
		return trigramsImply(q.Trigram, r)
	}

	if q.Op == QOr && r.Op == QOr &&
		len(q.Trigram) > 0 && len(q.Sub) == 0 &&
		stringSet(q.Trigram).isSubsetOf(r.Trigram) {
		return true
	}
	return false
}

// trigramsImply reports whether the conjunction of the trigrams t
// implies q.
func trigramsImply(t []string, q *Query) bool {
	switch q.Op {
	case QOr:
		for _, sub := range q.Sub {
			if trigramsImply(t, sub) {
				return true
			}
		}
		for _, tt := range t {
			if slices.Contains(q.Trigram, tt) {
				return true
			}
		}
		return false
	case QAnd:
		for _, sub := range q.Sub {
			if !trigramsImply(t, sub) {
				return false
			}
		}
		return stringSet(q.Trigram).isSubsetOf(t)
	}
	return false
}

// String renders the query for debugging and tests.
func (q *Query) String() string {
	if q == nil {
		return "?"
	}
	if q.Op == QNone {
		return "-"
	}
	if q.Op == QAll {
		return "+"
	}

	if len(q.Sub) == 0 && len(q.Trigram) == 1 {
		return strings.Trim(strconv.Quote(q.Trigram[0]), `"`)
	}

	var (
		s     string
		sjoin string
		end   string
		tjoin string
	)
	if q.Op == QAnd {
		sjoin = " "
		tjoin = " "
	} else {
		s = "("
		sjoin = ")|("
		end = ")"
		tjoin = "|"
	}
	for i, t := range q.Trigram {
		if i > 0 {
			s += tjoin
		}
		s += strings.Trim(strconv.Quote(t), `"`)
	}
	if len(q.Sub) > 0 {
		if len(q.Trigram) > 0 {
			s += sjoin
		}
		s += q.Sub[0].String()
		for i := 1; i < len(q.Sub); i++ {
			s += sjoin + q.Sub[i].String()
		}
	}
	s += end
	return s
}

// A stringSet is a sorted, de-duplicated set of strings. The zero value
// is an empty set.
type stringSet []string

func (s *stringSet) add(str string) {
	*s = append(*s, str)
}

// clean sorts the set and removes duplicates. Suffix sets sort by
// reversed string so that redundancy checks can scan adjacent entries.
func (s *stringSet) clean(isSuffix bool) {
	t := *s
	if isSuffix {
		slices.SortFunc(t, compareSuffix)
	} else {
		slices.Sort(t)
	}
	w := 0
	for _, str := range t {
		if w == 0 || t[w-1] != str {
			t[w] = str
			w++
		}
	}
	*s = t[:w]
}

// compareSuffix orders strings by their bytes read right to left.
func compareSuffix(a, b string) int {
	i, j := len(a)-1, len(b)-1
	for i >= 0 && j >= 0 {
		if a[i] != b[j] {
			if a[i] < b[j] {
				return -1
			}
			return +1
		}
		i--
		j--
	}
	switch {
	case i < 0 && j < 0:
		return 0
	case i < 0:
		return -1
	default:
		return +1
	}
}

func (s stringSet) size() int  { return len(s) }
func (s stringSet) have() bool { return len(s) > 0 }

// minLen returns the length of the shortest string in the set, or 0 for
// an empty set.
func (s stringSet) minLen() int {
	if len(s) == 0 {
		return 0
	}
	m := len(s[0])
	for _, str := range s[1:] {
		if len(str) < m {
			m = len(str)
		}
	}
	return m
}

// copy returns a copy of the set with its own storage.
func (s stringSet) copy() stringSet {
	return append(stringSet(nil), s...)
}

// union returns the union of s and t, reusing s's storage.
func (s stringSet) union(t stringSet, isSuffix bool) stringSet {
	s = append(s, t...)
	s.clean(isSuffix)
	return s
}

// cross returns the set of all concatenations ss+tt.
func (s stringSet) cross(t stringSet, isSuffix bool) stringSet {
	p := stringSet{}
	for _, ss := range s {
		for _, tt := range t {
			p.add(ss + tt)
		}
	}
	p.clean(isSuffix)
	return p
}

// isSubsetOf reports whether every string in s is also in t.
func (s stringSet) isSubsetOf(t stringSet) bool {
	for _, ss := range s {
		if !slices.Contains(t, ss) {
			return false
		}
	}
	return true
}

// andTrigrams returns a query matched by every string that contains all
// trigrams of at least one member of the set. If any member is shorter
// than three bytes no trigram is guaranteed to appear, so the result is
// the unconstrained query.
func (s stringSet) andTrigrams() *Query {
	if s.minLen() < 3 {
		return allQuery
	}
	or := noneQuery
	for _, str := range s {
		var trig stringSet
		for i := 0; i+3 <= len(str); i++ {
			trig.add(str[i : i+3])
		}
		trig.clean(false)
		or = or.or(&Query{Op: QAnd, Trigram: trig})
	}
	return or
}
