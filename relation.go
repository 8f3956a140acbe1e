package main

import "slices"

type relationSet map[RelationType]struct{}

// RelationIndex maps characters to the relation types they belong to and
// relation types to their point values. It is immutable once built and safe
// for concurrent reads.
type RelationIndex struct {
	relations map[CharacterID]relationSet
	points    map[RelationType]int
}

// NewRelationIndex builds the index from membership and value records.
// A relation type listed more than once in values keeps its last point value.
func NewRelationIndex(members []RelationMember, values []RelationValue) *RelationIndex {
	idx := &RelationIndex{
		relations: make(map[CharacterID]relationSet),
		points:    make(map[RelationType]int, len(values)),
	}
	for _, m := range members {
		rs, ok := idx.relations[m.CharaID]
		if !ok {
			rs = make(relationSet)
			idx.relations[m.CharaID] = rs
		}
		rs[m.RelationType] = struct{}{}
	}
	for _, v := range values {
		idx.points[v.RelationType] = v.RelationPoint
	}
	return idx
}

func (idx *RelationIndex) relationsOf(id CharacterID) relationSet {
	return idx.relations[id]
}

// Point returns the value of a relation type, 0 when it has none.
func (idx *RelationIndex) Point(rt RelationType) int {
	return idx.points[rt]
}

// Relations returns the sorted relation types of a character.
func (idx *RelationIndex) Relations(id CharacterID) []RelationType {
	rs := idx.relations[id]
	out := make([]RelationType, 0, len(rs))
	for rt := range rs {
		out = append(out, rt)
	}
	slices.Sort(out)
	return out
}

// Characters returns the sorted ids of every character with at least one relation.
func (idx *RelationIndex) Characters() []CharacterID {
	out := make([]CharacterID, 0, len(idx.relations))
	for id := range idx.relations {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
