package main

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreAnyFunction("os/signal.loop"))
}

func newTestOptimizer(aff Affinity, cfg Config) *Optimizer {
	return NewOptimizer(aff, cfg, zap.NewNop())
}

func ids(xs ...int) []CharacterID {
	out := make([]CharacterID, len(xs))
	for i, x := range xs {
		out[i] = CharacterID(x)
	}
	return out
}

// bruteForce enumerates every distinct assignment honoring req's fixed slots
// and returns the best total.
func bruteForce(aff Affinity, req Request, pool []CharacterID) (int, bool) {
	pool = uniqueIDs(pool)
	var cur [SlotCount]CharacterID
	best, found := 0, false

	var rec func(slot Slot)
	rec = func(slot Slot) {
		if slot == SlotCount {
			l := lineageFromIDs(cur)
			if !l.Distinct() {
				return
			}
			if total := CalcLineageDetail(aff, l).Total; !found || total > best {
				best, found = total, true
			}
			return
		}
		cands := pool
		if req[slot] != 0 {
			cands = []CharacterID{req[slot]}
		}
	next:
		for _, id := range cands {
			for s := SlotChild; s < slot; s++ {
				if cur[s] == id {
					continue next
				}
			}
			cur[slot] = id
			rec(slot + 1)
		}
	}
	rec(SlotChild)
	return best, found
}

// verifyLineage checks distinctness, fixed slots and the reported score.
func verifyLineage(t *testing.T, aff Affinity, req Request, res *Result) {
	t.Helper()
	require.NotNil(t, res)
	assert.True(t, res.Lineage.Distinct(), "lineage %+v has repeats", res.Lineage)
	got := res.Lineage.IDs()
	for s, id := range req {
		if id != 0 {
			assert.Equal(t, id, got[s], "fixed slot %s", Slot(s))
		}
	}
	assert.Equal(t, CalcLineageDetail(aff, res.Lineage).Total, res.Score)
}

// pairwiseIndex gives every pair of characters 1..n its own relation type
// worth a distinct power of two, so every pair scores differently.
func pairwiseIndex(n int) *RelationIndex {
	var members []RelationMember
	var values []RelationValue
	rt := RelationType(0)
	for a := 1; a <= n; a++ {
		for b := a + 1; b <= n; b++ {
			rt++
			members = append(members,
				RelationMember{RelationType: rt, CharaID: CharacterID(a)},
				RelationMember{RelationType: rt, CharaID: CharacterID(b)})
			values = append(values, RelationValue{RelationType: rt, RelationPoint: 1 << int(rt)})
		}
	}
	// one triple relation so trio scores matter
	rt++
	for _, id := range []CharacterID{1, 3, 6} {
		members = append(members, RelationMember{RelationType: rt, CharaID: id})
	}
	values = append(values, RelationValue{RelationType: rt, RelationPoint: 3})
	return NewRelationIndex(members, values)
}

func TestOptimize_MalformedRequest(t *testing.T) {
	opt := newTestOptimizer(NewScorer(sampleIndex()), DefaultConfig())
	for _, req := range []Request{nil, {}, {1, 2, 3, 4, 5, 6}, {1, 0, 0, 0, 0, 0, 0, 0}} {
		res, err := opt.Optimize(context.Background(), req, ids(1, 2, 3, 4, 5, 6, 7, 8))
		require.NoError(t, err)
		assert.Nil(t, res, "request of length %d", len(req))
	}
}

func TestOptimize_ChildFixedMatchesBruteForce(t *testing.T) {
	scorer := NewScorer(pairwiseIndex(7))
	opt := newTestOptimizer(scorer, DefaultConfig())

	req := Request{1, 0, 0, 0, 0, 0, 0}
	pool := ids(2, 3, 4, 5, 6, 7)
	res, err := opt.Optimize(context.Background(), req, pool)
	require.NoError(t, err)
	verifyLineage(t, scorer, req, res)

	want, ok := bruteForce(scorer, req, pool)
	require.True(t, ok)
	assert.Equal(t, want, res.Score)
	assert.Equal(t, CharacterID(1), res.Lineage.Child)
}

func TestOptimize_RandomMatchesBruteForce(t *testing.T) {
	cases := 40
	if testing.Short() {
		cases = 8
	}
	rng := rand.New(rand.NewPCG(7, 11))

	for i := 0; i < cases; i++ {
		n := 7 + rng.IntN(2)
		scorer := NewScorer(randomIndex(rng, n+2, 6))

		pool := make([]CharacterID, n)
		for j := range pool {
			pool[j] = CharacterID(j + 1)
		}
		rng.Shuffle(len(pool), func(a, b int) { pool[a], pool[b] = pool[b], pool[a] })

		// pin up to three slots, sometimes with ids outside the pool
		req := NewRequest()
		for k := rng.IntN(4); k > 0; k-- {
			slot := Slot(rng.IntN(int(SlotCount)))
			req[slot] = CharacterID(1 + rng.IntN(n+2))
		}

		opt := newTestOptimizer(scorer, DefaultConfig())
		res, err := opt.Optimize(context.Background(), req, pool)
		require.NoError(t, err)

		want, ok := bruteForce(scorer, req, pool)
		if !ok {
			assert.Nil(t, res, "case %d req=%v: expected no solution", i, req)
			continue
		}
		verifyLineage(t, scorer, req, res)
		assert.Equal(t, want, res.Score, "case %d req=%v pool=%v", i, req, pool)
	}
}

func TestOptimize_ChildUnfixedPicksBestChild(t *testing.T) {
	scorer := NewScorer(pairwiseIndex(8))
	opt := newTestOptimizer(scorer, DefaultConfig())

	req := NewRequest()
	pool := ids(1, 2, 3, 4, 5, 6, 7, 8)
	res, err := opt.Optimize(context.Background(), req, pool)
	require.NoError(t, err)
	verifyLineage(t, scorer, req, res)

	want, _ := bruteForce(scorer, req, pool)
	assert.Equal(t, want, res.Score)
}

func TestOptimize_FixedSlotsReproduced(t *testing.T) {
	scorer := NewScorer(pairwiseIndex(9))
	opt := newTestOptimizer(scorer, DefaultConfig())

	// 20 and 21 are outside the pool and outside the index
	req := Request{0, 20, 0, 0, 4, 21, 0}
	res, err := opt.Optimize(context.Background(), req, ids(1, 2, 3, 4, 5, 6, 7))
	require.NoError(t, err)
	verifyLineage(t, scorer, req, res)
	assert.Equal(t, CharacterID(20), res.Lineage.P1)
	assert.Equal(t, CharacterID(4), res.Lineage.GP2)
	assert.Equal(t, CharacterID(21), res.Lineage.GP3)
}

func TestOptimize_NoSolution(t *testing.T) {
	scorer := NewScorer(pairwiseIndex(8))
	opt := newTestOptimizer(scorer, DefaultConfig())

	tests := []struct {
		name string
		req  Request
		pool []CharacterID
	}{
		{"empty pool", NewRequest(), nil},
		{"pool too small", Request{1, 0, 0, 0, 0, 0, 0}, ids(2, 3, 4, 5, 6)},
		{"pool too small child unfixed", NewRequest(), ids(1, 2, 3, 4, 5, 6)},
		{"grandparent equals its parent", Request{1, 2, 0, 2, 0, 0, 0}, ids(3, 4, 5, 6, 7, 8)},
		{"grandparents repeat in half", Request{1, 0, 0, 5, 5, 0, 0}, ids(2, 3, 4, 5, 6, 7, 8)},
		{"grandparent equals other parent", Request{1, 2, 0, 0, 0, 2, 0}, ids(3, 4, 5, 6, 7, 8)},
		{"parents collide", Request{1, 2, 2, 0, 0, 0, 0}, ids(3, 4, 5, 6, 7, 8)},
		{"parent is child", Request{1, 1, 0, 0, 0, 0, 0}, ids(2, 3, 4, 5, 6, 7, 8)},
		{"grandparent is child", Request{1, 0, 0, 0, 0, 0, 1}, ids(2, 3, 4, 5, 6, 7, 8)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := opt.Optimize(context.Background(), tt.req, tt.pool)
			require.NoError(t, err)
			assert.Nil(t, res)
		})
	}
}

func TestOptimize_PoolDuplicatesIgnored(t *testing.T) {
	scorer := NewScorer(pairwiseIndex(7))
	opt := newTestOptimizer(scorer, DefaultConfig())

	// five distinct ids once repeats and zeros are dropped
	res, err := opt.Optimize(context.Background(), Request{1, 0, 0, 0, 0, 0, 0}, ids(2, 2, 3, 0, 4, 5, 6, 6))
	require.NoError(t, err)
	assert.Nil(t, res)

	res, err = opt.Optimize(context.Background(), Request{1, 0, 0, 0, 0, 0, 0}, ids(2, 2, 3, 0, 4, 5, 6, 7))
	require.NoError(t, err)
	verifyLineage(t, scorer, Request{1, 0, 0, 0, 0, 0, 0}, res)
}

func TestOptimize_TiesKeepFirstEnumerated(t *testing.T) {
	opt := newTestOptimizer(NewScorer(NewRelationIndex(nil, nil)), DefaultConfig())

	res, err := opt.Optimize(context.Background(), Request{1, 0, 0, 0, 0, 0, 0}, ids(2, 3, 4, 5, 6, 7))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, Lineage{1, 2, 3, 4, 5, 6, 7}, res.Lineage)
	assert.Zero(t, res.Score)

	res, err = opt.Optimize(context.Background(), NewRequest(), ids(7, 6, 5, 4, 3, 2, 1))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, Lineage{7, 6, 5, 4, 3, 2, 1}, res.Lineage)
}

func TestOptimize_Monotonic(t *testing.T) {
	rng := rand.New(rand.NewPCG(21, 5))
	for i := 0; i < 15; i++ {
		scorer := NewScorer(randomIndex(rng, 12, 8))
		opt := newTestOptimizer(scorer, DefaultConfig())

		req := Request{CharacterID(1 + rng.IntN(12)), 0, 0, 0, 0, 0, 0}
		pool := ids(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12)
		rng.Shuffle(len(pool), func(a, b int) { pool[a], pool[b] = pool[b], pool[a] })

		prev := -1
		for size := 7; size <= len(pool); size++ {
			res, err := opt.Optimize(context.Background(), req, pool[:size])
			require.NoError(t, err)
			if res == nil {
				assert.Equal(t, -1, prev, "solution vanished at pool size %d", size)
				continue
			}
			assert.GreaterOrEqual(t, res.Score, prev, "pool size %d", size)
			prev = res.Score
		}
	}
}

func TestOptimize_ParallelMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewPCG(99, 1))
	for i := 0; i < 10; i++ {
		scorer := NewScorer(randomIndex(rng, 14, 5))
		pool := ids(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14)
		req := NewRequest()
		if i%2 == 0 {
			req[SlotGP4] = CharacterID(1 + rng.IntN(14))
		}

		seq, err := newTestOptimizer(scorer, DefaultConfig()).Optimize(context.Background(), req, pool)
		require.NoError(t, err)

		cfg := DefaultConfig()
		cfg.Workers = 4
		par, err := newTestOptimizer(scorer, cfg).Optimize(context.Background(), req, pool)
		require.NoError(t, err)

		if diff := cmp.Diff(seq, par); diff != "" {
			t.Errorf("case %d: parallel result differs (-seq +par):\n%s", i, diff)
		}
	}
}

func TestOptimize_Cancelled(t *testing.T) {
	scorer := NewScorer(pairwiseIndex(8))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 4} {
		cfg := DefaultConfig()
		cfg.Workers = workers
		res, err := newTestOptimizer(scorer, cfg).Optimize(ctx, NewRequest(), ids(1, 2, 3, 4, 5, 6, 7, 8))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, res)
	}
}

func TestOptimize_BoundedRanking(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 42))
	for i := 0; i < 10; i++ {
		scorer := NewScorer(randomIndex(rng, 10, 6))
		pool := ids(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
		req := Request{CharacterID(1 + rng.IntN(10)), 0, 0, 0, 0, 0, 0}

		exact, err := newTestOptimizer(scorer, DefaultConfig()).Optimize(context.Background(), req, pool)
		require.NoError(t, err)
		require.NotNil(t, exact)

		cfg := DefaultConfig()
		cfg.GrandparentTopK = 2
		top2, err := newTestOptimizer(scorer, cfg).Optimize(context.Background(), req, pool)
		require.NoError(t, err)
		if top2 == nil {
			continue
		}
		verifyLineage(t, scorer, req, top2)
		assert.LessOrEqual(t, top2.Score, exact.Score)
	}
}

func TestRankGrandparents(t *testing.T) {
	s := &search{depth: 3, aff: newAffinityCache(NewScorer(pairwiseIndex(6)))}
	// beneath parent 1 with child 6: duo(1,gp) dominates and grows with gp
	got := s.rankGrandparents(6, 1, ids(2, 3, 4, 5, 1))
	require.Len(t, got, 3)
	assert.Equal(t, ids(5, 4, 3), []CharacterID{got[0].id, got[1].id, got[2].id})
	assert.GreaterOrEqual(t, got[0].score, got[1].score)
	assert.GreaterOrEqual(t, got[1].score, got[2].score)
}

func TestBestDisjointPicks(t *testing.T) {
	a := []rankedGP{{id: 5, score: 10}, {id: 6, score: 8}, {id: 7, score: 1}}
	b := []rankedGP{{id: 5, score: 9}, {id: 6, score: 9}, {id: 8, score: 2}, {id: 9, score: 1}}

	pa, pb, score, ok := bestDisjointPicks(a, 2, b, 2)
	require.True(t, ok)
	// {5,7}+{6,8} = 11+11 beats the greedy {5,6}+{8,9} = 18+3
	assert.Equal(t, []int{0, 2}, pa)
	assert.Equal(t, []int{1, 2}, pb)
	assert.Equal(t, 22, score)

	_, _, _, ok = bestDisjointPicks(a[:1], 1, b[:1], 1)
	assert.False(t, ok)

	pa, pb, score, ok = bestDisjointPicks(a, 0, b, 1)
	require.True(t, ok)
	assert.Empty(t, pa)
	assert.Equal(t, []int{0}, pb)
	assert.Equal(t, 9, score)
}

func TestUniqueIDs(t *testing.T) {
	assert.Equal(t, ids(3, 1, 2, 9), uniqueIDs(ids(3, 0, 1, 3, 2), 0, 9, 1))
	assert.Empty(t, uniqueIDs(nil))
}
