package record

import (
	"fmt"
	"iter"
	"sort"
	"strconv"
	"strings"
)

// A RangeSet is a compact selector over 1-based job indices, written as
// comma-separated single indices or inclusive spans: "1,3-5,9".
type RangeSet struct {
	spans []span
}

type span struct {
	lo, hi int
}

func NewRangeSet() *RangeSet {
	return &RangeSet{}
}

// Span returns a range set covering the single inclusive span [lo, hi].
// An empty or inverted span yields an empty set.
func Span(lo, hi int) *RangeSet {
	if lo < 1 || hi < lo {
		return NewRangeSet()
	}

	return &RangeSet{spans: []span{{lo, hi}}}
}

// ParseRangeSet parses an expression like "1,3-5,9". Indices must be
// positive and spans must not be reversed.
func ParseRangeSet(s string) (*RangeSet, error) {
	rs := NewRangeSet()
	for tok := range strings.SplitSeq(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return nil, fmt.Errorf("%w: empty range token", ErrMalformed)
		}

		lo, hi, ok := strings.Cut(tok, "-")
		l, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil || l < 1 {
			return nil, fmt.Errorf("%w: bad range index %q", ErrMalformed, tok)
		}

		h := l
		if ok {
			h, err = strconv.Atoi(strings.TrimSpace(hi))
			if err != nil || h < l {
				return nil, fmt.Errorf("%w: bad range span %q", ErrMalformed, tok)
			}
		}

		rs.add(span{l, h})
	}

	return rs, nil
}

// Swallow adds a single index to the set, merging with adjacent or
// overlapping spans.
func (rs *RangeSet) Swallow(i int) {
	rs.add(span{i, i})
}

func (rs *RangeSet) add(s span) {
	rs.spans = append(rs.spans, s)
	sort.Slice(rs.spans, func(a, b int) bool {
		return rs.spans[a].lo < rs.spans[b].lo
	})

	merged := rs.spans[:1]
	for _, s := range rs.spans[1:] {
		last := &merged[len(merged)-1]
		if s.lo <= last.hi+1 {
			if s.hi > last.hi {
				last.hi = s.hi
			}
			continue
		}
		merged = append(merged, s)
	}

	rs.spans = merged
}

func (rs *RangeSet) IsEmpty() bool {
	return len(rs.spans) == 0
}

// Indices iterates the set in ascending order.
func (rs *RangeSet) Indices() iter.Seq[int] {
	return func(yield func(int) bool) {
		for _, s := range rs.spans {
			for i := s.lo; i <= s.hi; i++ {
				if !yield(i) {
					return
				}
			}
		}
	}
}

func (rs *RangeSet) String() string {
	parts := make([]string, 0, len(rs.spans))
	for _, s := range rs.spans {
		if s.lo == s.hi {
			parts = append(parts, strconv.Itoa(s.lo))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", s.lo, s.hi))
		}
	}

	return strings.Join(parts, ",")
}
