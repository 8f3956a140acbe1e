package main

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// exactGrandparentDepth is the ranked-list depth at which half resolution is
// exact: four free grandparent slots plus the child and the other parent,
// either of which may block an entry. A fixed grandparent blocks one entry
// but also removes one free slot.
const exactGrandparentDepth = 6

// ── Optimizer ───────────────────────────────────────────────────────

// Optimizer finds the lineage with the highest total affinity for a partial
// request and a candidate pool. It holds no state between Optimize calls and
// may be shared by concurrent callers.
type Optimizer struct {
	affinity Affinity
	cfg      Config
	log      *zap.Logger
}

// NewOptimizer creates an optimizer scoring with affinity.
func NewOptimizer(affinity Affinity, cfg Config, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{affinity: affinity, cfg: cfg, log: logger}
}

func (o *Optimizer) rankDepth() int {
	if o.cfg.GrandparentTopK > 0 {
		return o.cfg.GrandparentTopK
	}
	return exactGrandparentDepth
}

// search is the scratch state of one Optimize call, or of one worker of it.
type search struct {
	fixed [SlotCount]CharacterID
	pool  []CharacterID
	depth int
	aff   *affinityCache
}

func (o *Optimizer) newSearch(fixed [SlotCount]CharacterID, pool []CharacterID) *search {
	return &search{
		fixed: fixed,
		pool:  pool,
		depth: o.rankDepth(),
		aff:   newAffinityCache(o.affinity),
	}
}

// ── Main entry point ────────────────────────────────────────────────

// Optimize returns the best complete lineage honoring every fixed slot in req,
// filling the rest from pool. A nil result with a nil error means there is no
// solution: a malformed request, too few candidates, or colliding fixed ids.
// The only error returned is the context's, when it is cancelled between
// child candidates.
func (o *Optimizer) Optimize(ctx context.Context, req Request, pool []CharacterID) (*Result, error) {
	start := time.Now()
	if len(req) != int(SlotCount) {
		o.log.Debug("search.reject", zap.Int("slots", len(req)))
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var fixed [SlotCount]CharacterID
	copy(fixed[:], req)
	pool = uniqueIDs(pool)

	o.log.Debug("search.start",
		zap.Int("pool", len(pool)),
		zap.Int("depth", o.rankDepth()),
		zap.Bool("childFixed", fixed[SlotChild] != 0))

	var (
		best *Result
		err  error
	)
	switch {
	case fixed[SlotChild] != 0:
		best = o.newSearch(fixed, pool).findForChild(fixed[SlotChild])
	case o.cfg.Workers > 1 && len(pool) > 1:
		best, err = o.searchChildrenParallel(ctx, fixed, pool)
	default:
		best, err = o.searchChildren(ctx, fixed, pool)
	}
	if err != nil {
		o.log.Debug("search.cancelled", zap.Error(err))
		return nil, err
	}

	if best == nil {
		o.log.Info("search.done", zap.Bool("found", false), zap.Duration("elapsed", time.Since(start)))
		return nil, nil
	}
	o.log.Info("search.done",
		zap.Bool("found", true),
		zap.Int("score", best.Score),
		zap.Duration("elapsed", time.Since(start)))
	return best, nil
}

// searchChildren tries every pool candidate as the child, in pool order.
func (o *Optimizer) searchChildren(ctx context.Context, fixed [SlotCount]CharacterID, pool []CharacterID) (*Result, error) {
	s := o.newSearch(fixed, pool)
	var best *Result
	for _, child := range pool {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r := s.findForChild(child)
		if r != nil {
			o.log.Debug("search.child", zap.Int("child", int(child)), zap.Int("score", r.Score))
		}
		if r != nil && (best == nil || r.Score > best.Score) {
			best = r
		}
	}
	return best, nil
}

// searchChildrenParallel shards child candidates across cfg.Workers
// goroutines. Each worker owns its memo cache; results are reduced in pool
// order so ties resolve exactly as in searchChildren.
func (o *Optimizer) searchChildrenParallel(ctx context.Context, fixed [SlotCount]CharacterID, pool []CharacterID) (*Result, error) {
	results := make([]*Result, len(pool))
	idxCh := make(chan int)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(idxCh)
		for i := range pool {
			select {
			case idxCh <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	numWorkers := min(o.cfg.Workers, len(pool))
	for w := 0; w < numWorkers; w++ {
		g.Go(func() error {
			worker := o.newSearch(fixed, pool)
			for i := range idxCh {
				results[i] = worker.findForChild(pool[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var best *Result
	for i, r := range results {
		if r == nil {
			continue
		}
		o.log.Debug("search.child", zap.Int("child", int(pool[i])), zap.Int("score", r.Score))
		if best == nil || r.Score > best.Score {
			best = r
		}
	}
	return best, nil
}

// ── Per-child search ────────────────────────────────────────────────

type rankedGP struct {
	id    CharacterID
	score int
}

// findForChild enumerates every ordered parent pair for child and returns
// the best feasible lineage, or nil when none exists.
func (s *search) findForChild(child CharacterID) *Result {
	parentPool := make([]CharacterID, 0, len(s.pool)+2)
	for _, id := range s.pool {
		if id != child {
			parentPool = append(parentPool, id)
		}
	}
	parentPool = uniqueIDs(parentPool, s.fixed[SlotP1], s.fixed[SlotP2])

	p1Set, p2Set := parentPool, parentPool
	if p := s.fixed[SlotP1]; p != 0 {
		p1Set = []CharacterID{p}
	}
	if p := s.fixed[SlotP2]; p != 0 {
		p2Set = []CharacterID{p}
	}

	gpPool := uniqueIDs(s.pool, s.fixed[SlotGP1:]...)

	ranked := make(map[CharacterID][]rankedGP, len(parentPool))
	for _, set := range [2][]CharacterID{p1Set, p2Set} {
		for _, p := range set {
			if _, ok := ranked[p]; !ok {
				ranked[p] = s.rankGrandparents(child, p, gpPool)
			}
		}
	}

	var best *Result
	for _, p1 := range p1Set {
		if p1 == child {
			continue
		}
		for _, p2 := range p2Set {
			if p2 == p1 || p2 == child {
				continue
			}
			ids, halves, ok := s.resolveHalves(child, p1, p2, ranked[p1], ranked[p2])
			if !ok {
				continue
			}
			score := s.aff.duoScore(child, p1) +
				s.aff.duoScore(child, p2) +
				2*s.aff.duoScore(p1, p2) +
				halves
			if best == nil || score > best.Score {
				best = &Result{Lineage: lineageFromIDs(ids), Score: score}
			}
		}
	}
	return best
}

// rankGrandparents keeps the s.depth best grandparents for parent p, highest
// half score first. Equal scores keep pool order.
func (s *search) rankGrandparents(child, p CharacterID, gpPool []CharacterID) []rankedGP {
	top := make([]rankedGP, 0, s.depth+1)
	for _, gp := range gpPool {
		if gp == p {
			continue
		}
		sc := s.aff.halfScore(child, p, gp)
		if len(top) == s.depth && sc <= top[len(top)-1].score {
			continue
		}
		i := len(top)
		for i > 0 && top[i-1].score < sc {
			i--
		}
		top = slices.Insert(top, i, rankedGP{id: gp, score: sc})
		if len(top) > s.depth {
			top = top[:s.depth]
		}
	}
	return top
}

// resolveHalves places the four grandparents beneath p1 and p2. Fixed
// grandparents keep their slots; free slots take the best-scoring disjoint
// picks from each parent's ranked list. ok is false when the lineage cannot
// be completed with seven distinct ids.
func (s *search) resolveHalves(child, p1, p2 CharacterID, rank1, rank2 []rankedGP) (ids [SlotCount]CharacterID, score int, ok bool) {
	ids = s.fixed
	ids[SlotChild], ids[SlotP1], ids[SlotP2] = child, p1, p2

	used := make([]CharacterID, 0, SlotCount)
	used = append(used, child, p1, p2)
	for slot := SlotGP1; slot < SlotCount; slot++ {
		gp := ids[slot]
		if gp == 0 {
			continue
		}
		if slices.Contains(used, gp) {
			return ids, 0, false
		}
		used = append(used, gp)
		parent := p1
		if slot >= SlotGP3 {
			parent = p2
		}
		score += s.aff.halfScore(child, parent, gp)
	}

	free1 := freeSlots(&ids, SlotGP1, SlotGP2)
	free2 := freeSlots(&ids, SlotGP3, SlotGP4)
	need := len(free1) + len(free2)
	cand1 := availableGPs(rank1, used, need)
	cand2 := availableGPs(rank2, used, need)
	if len(cand1) < len(free1) || len(cand2) < len(free2) {
		return ids, 0, false
	}

	pick1, pick2, picked, found := bestDisjointPicks(cand1, len(free1), cand2, len(free2))
	if !found {
		return ids, 0, false
	}
	for i, slot := range free1 {
		ids[slot] = cand1[pick1[i]].id
	}
	for i, slot := range free2 {
		ids[slot] = cand2[pick2[i]].id
	}
	return ids, score + picked, true
}

func freeSlots(ids *[SlotCount]CharacterID, slots ...Slot) []Slot {
	var out []Slot
	for _, s := range slots {
		if ids[s] == 0 {
			out = append(out, s)
		}
	}
	return out
}

// availableGPs returns up to n ranked entries not in used. Both halves
// together fill n slots, so the best picks for one half always lie within
// its first n available entries.
func availableGPs(rank []rankedGP, used []CharacterID, n int) []rankedGP {
	out := make([]rankedGP, 0, n)
	for _, r := range rank {
		if len(out) == n {
			break
		}
		if !slices.Contains(used, r.id) {
			out = append(out, r)
		}
	}
	return out
}

// bestDisjointPicks chooses k1 entries of a and k2 of b with no id in common,
// maximizing the summed score. The first combination found wins ties.
func bestDisjointPicks(a []rankedGP, k1 int, b []rankedGP, k2 int) (pa, pb []int, score int, ok bool) {
	combosB := combinations(len(b), k2)
	for _, ca := range combinations(len(a), k1) {
		sa := 0
		for _, i := range ca {
			sa += a[i].score
		}
	nextB:
		for _, cb := range combosB {
			sb := 0
			for _, j := range cb {
				for _, i := range ca {
					if a[i].id == b[j].id {
						continue nextB
					}
				}
				sb += b[j].score
			}
			if !ok || sa+sb > score {
				pa, pb, score, ok = ca, cb, sa+sb, true
			}
		}
	}
	return pa, pb, score, ok
}

// combinations lists the k-element index subsets of [0, n) in lexicographic order.
func combinations(n, k int) [][]int {
	var out [][]int
	idx := make([]int, k)
	var rec func(start, depth int)
	rec = func(start, depth int) {
		if depth == k {
			out = append(out, slices.Clone(idx))
			return
		}
		for i := start; i < n; i++ {
			idx[depth] = i
			rec(i+1, depth+1)
		}
	}
	rec(0, 0)
	return out
}

// uniqueIDs returns ids followed by extra in first-seen order, dropping
// zeros and repeats.
func uniqueIDs(ids []CharacterID, extra ...CharacterID) []CharacterID {
	seen := make(map[CharacterID]bool, len(ids)+len(extra))
	out := make([]CharacterID, 0, len(ids)+len(extra))
	for _, list := range [2][]CharacterID{ids, extra} {
		for _, id := range list {
			if id == 0 || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
