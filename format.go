package main

import (
	"fmt"
	"strings"
)

// GrandparentDetail is one grandparent's contribution beneath its parent.
type GrandparentDetail struct {
	ID    CharacterID
	Trio  int // trio affinity with the child and parent
	Duo   int // duo affinity with the parent
	Total int
}

// LineageDetail holds the per-slot scoring breakdown of a lineage.
type LineageDetail struct {
	Lineage      Lineage
	ChildParent  [2]int // duo(child, p1), duo(child, p2)
	ParentPair   int    // duo(p1, p2), counted twice in Total
	Grandparents [4]GrandparentDetail
	Total        int
}

// CalcLineageDetail computes the same total the optimizer maximizes, with its
// per-slot breakdown.
func CalcLineageDetail(aff Affinity, l Lineage) LineageDetail {
	c := newAffinityCache(aff)
	d := LineageDetail{Lineage: l}
	d.ChildParent[0] = c.duoScore(l.Child, l.P1)
	d.ChildParent[1] = c.duoScore(l.Child, l.P2)
	d.ParentPair = c.duoScore(l.P1, l.P2)
	d.Total = d.ChildParent[0] + d.ChildParent[1] + 2*d.ParentPair

	gps := [4]CharacterID{l.GP1, l.GP2, l.GP3, l.GP4}
	for i, gp := range gps {
		parent := l.P1
		if i >= 2 {
			parent = l.P2
		}
		g := &d.Grandparents[i]
		g.ID = gp
		g.Trio = c.trioScore(l.Child, parent, gp)
		g.Duo = c.duoScore(parent, gp)
		g.Total = g.Trio + g.Duo
		d.Total += g.Total
	}
	return d
}

func charName(names map[CharacterID]string, id CharacterID) string {
	if n, ok := names[id]; ok && n != "" {
		return fmt.Sprintf("%s(%d)", n, id)
	}
	return fmt.Sprintf("#%d", id)
}

// FormatLineage renders a lineage breakdown as text. names may be nil.
func FormatLineage(d LineageDetail, names map[CharacterID]string) string {
	var b strings.Builder
	l := d.Lineage

	fmt.Fprintf(&b, "child: %s\n", charName(names, l.Child))
	parents := [2]CharacterID{l.P1, l.P2}
	for pi, p := range parents {
		fmt.Fprintf(&b, "  p%d: %s -> %d %s\n",
			pi+1, charName(names, p), d.ChildParent[pi], AffinityGrade(d.ChildParent[pi]))
		for gi := 2 * pi; gi < 2*pi+2; gi++ {
			g := &d.Grandparents[gi]
			fmt.Fprintf(&b, "    gp%d: %s -> %d + %d = %d %s\n",
				gi+1, charName(names, g.ID), g.Trio, g.Duo, g.Total, AffinityGrade(g.Total))
		}
	}
	fmt.Fprintf(&b, "parents: %d x2\n", d.ParentPair)
	fmt.Fprintf(&b, "total: %d %s\n", d.Total, AffinityGrade(d.Total))
	return b.String()
}
