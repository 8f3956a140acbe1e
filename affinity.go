package main

// Affinity scores pairs and triples of characters. The bool result is false
// when any id is absent (zero).
type Affinity interface {
	DuoAffinity(a, b CharacterID) (int, bool)
	TrioAffinity(a, b, c CharacterID) (int, bool)
}

// Scorer computes affinity from shared relation types in a RelationIndex.
type Scorer struct {
	idx *RelationIndex
}

func NewScorer(idx *RelationIndex) *Scorer {
	return &Scorer{idx: idx}
}

// DuoAffinity sums the points of every relation type a and b share.
// Self pairs score 0; characters unknown to the index have no relations.
func (s *Scorer) DuoAffinity(a, b CharacterID) (int, bool) {
	if a == 0 || b == 0 {
		return 0, false
	}
	if a == b {
		return 0, true
	}
	small, large := s.idx.relationsOf(a), s.idx.relationsOf(b)
	if len(small) > len(large) {
		small, large = large, small
	}
	sum := 0
	for rt := range small {
		if _, ok := large[rt]; ok {
			sum += s.idx.Point(rt)
		}
	}
	return sum, true
}

// TrioAffinity sums the points of every relation type shared by all three.
// It is symmetric in its arguments and scores 0 when any two are equal.
func (s *Scorer) TrioAffinity(a, b, c CharacterID) (int, bool) {
	if a == 0 || b == 0 || c == 0 {
		return 0, false
	}
	if a == b || a == c || b == c {
		return 0, true
	}
	sets := [3]relationSet{s.idx.relationsOf(a), s.idx.relationsOf(b), s.idx.relationsOf(c)}
	// smallest first
	for i := 1; i < 3; i++ {
		for j := i; j > 0 && len(sets[j]) < len(sets[j-1]); j-- {
			sets[j], sets[j-1] = sets[j-1], sets[j]
		}
	}
	sum := 0
	for rt := range sets[0] {
		if _, ok := sets[1][rt]; !ok {
			continue
		}
		if _, ok := sets[2][rt]; ok {
			sum += s.idx.Point(rt)
		}
	}
	return sum, true
}

// ── Memoization ─────────────────────────────────────────────────────

type pairKey [2]CharacterID

type trioKey [3]CharacterID

func makePairKey(a, b CharacterID) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

func makeTrioKey(a, b, c CharacterID) trioKey {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b, c = c, b
	}
	if a > b {
		a, b = b, a
	}
	return trioKey{a, b, c}
}

// affinityCache memoizes an Affinity for the lifetime of one search.
// Not safe for concurrent use; each search worker owns its own.
type affinityCache struct {
	src  Affinity
	duo  map[pairKey]int
	trio map[trioKey]int
}

func newAffinityCache(src Affinity) *affinityCache {
	return &affinityCache{
		src:  src,
		duo:  make(map[pairKey]int),
		trio: make(map[trioKey]int),
	}
}

// duoScore returns the duo affinity, 0 for absent ids.
func (c *affinityCache) duoScore(a, b CharacterID) int {
	if a == 0 || b == 0 {
		return 0
	}
	k := makePairKey(a, b)
	if v, ok := c.duo[k]; ok {
		return v
	}
	v, _ := c.src.DuoAffinity(a, b)
	c.duo[k] = v
	return v
}

// trioScore returns the trio affinity, 0 for absent ids.
func (c *affinityCache) trioScore(a, b, d CharacterID) int {
	if a == 0 || b == 0 || d == 0 {
		return 0
	}
	k := makeTrioKey(a, b, d)
	if v, ok := c.trio[k]; ok {
		return v
	}
	v, _ := c.src.TrioAffinity(a, b, d)
	c.trio[k] = v
	return v
}

// halfScore is what grandparent gp adds beneath parent p for the given child.
func (c *affinityCache) halfScore(child, p, gp CharacterID) int {
	return c.trioScore(child, p, gp) + c.duoScore(p, gp)
}

// ── Grades ──────────────────────────────────────────────────────────

// Grade buckets an affinity score for display.
type Grade int

const (
	GradeFair Grade = iota
	GradeGood
	GradeExcellent
)

func (g Grade) String() string {
	switch g {
	case GradeExcellent:
		return "◎"
	case GradeGood:
		return "○"
	}
	return "△"
}

func AffinityGrade(score int) Grade {
	switch {
	case score >= 151:
		return GradeExcellent
	case score >= 51:
		return GradeGood
	}
	return GradeFair
}
