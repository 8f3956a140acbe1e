package main

// CharacterID identifies a character. Zero is "no value" and never a valid id.
type CharacterID int

// RelationType identifies a narrative relation category.
type RelationType int

// RelationMember associates one character with one relation type.
type RelationMember struct {
	ID           int
	RelationType RelationType
	CharaID      CharacterID
}

// RelationValue is the point value contributed by a shared relation type.
type RelationValue struct {
	RelationType  RelationType
	RelationPoint int
}

// Character is one entry of the character catalog.
type Character struct {
	ID       CharacterID
	Name     string
	Released bool
}

type Slot int

const (
	SlotChild Slot = iota
	SlotP1
	SlotP2
	SlotGP1
	SlotGP2
	SlotGP3
	SlotGP4
	SlotCount
)

var slotNames = [SlotCount]string{"child", "p1", "p2", "gp1", "gp2", "gp3", "gp4"}

func (s Slot) String() string {
	if s < 0 || s >= SlotCount {
		return "unknown"
	}
	return slotNames[s]
}

func parseSlot(s string) (Slot, bool) {
	switch s {
	case "child":
		return SlotChild, true
	case "p1":
		return SlotP1, true
	case "p2":
		return SlotP2, true
	case "gp1":
		return SlotGP1, true
	case "gp2":
		return SlotGP2, true
	case "gp3":
		return SlotGP3, true
	case "gp4":
		return SlotGP4, true
	}
	return 0, false
}

// Request is a partial lineage in slot order (child, p1, p2, gp1..gp4).
// Zero entries are unspecified. A request that does not have exactly
// SlotCount entries has no solution.
type Request []CharacterID

// NewRequest returns an empty, well-formed request.
func NewRequest() Request {
	return make(Request, SlotCount)
}

// Lineage is a complete seven-slot assignment. GP1/GP2 sit under P1,
// GP3/GP4 under P2.
type Lineage struct {
	Child CharacterID `json:"child"`
	P1    CharacterID `json:"p1"`
	P2    CharacterID `json:"p2"`
	GP1   CharacterID `json:"gp1"`
	GP2   CharacterID `json:"gp2"`
	GP3   CharacterID `json:"gp3"`
	GP4   CharacterID `json:"gp4"`
}

// IDs returns the lineage in slot order.
func (l Lineage) IDs() [SlotCount]CharacterID {
	return [SlotCount]CharacterID{l.Child, l.P1, l.P2, l.GP1, l.GP2, l.GP3, l.GP4}
}

func lineageFromIDs(ids [SlotCount]CharacterID) Lineage {
	return Lineage{
		Child: ids[SlotChild],
		P1:    ids[SlotP1],
		P2:    ids[SlotP2],
		GP1:   ids[SlotGP1],
		GP2:   ids[SlotGP2],
		GP3:   ids[SlotGP3],
		GP4:   ids[SlotGP4],
	}
}

// Distinct reports whether all seven slots hold different, non-zero ids.
func (l Lineage) Distinct() bool {
	ids := l.IDs()
	for i := range ids {
		if ids[i] == 0 {
			return false
		}
		for j := i + 1; j < len(ids); j++ {
			if ids[i] == ids[j] {
				return false
			}
		}
	}
	return true
}

// Result is the best lineage found by the optimizer and its total affinity.
type Result struct {
	Lineage Lineage `json:"lineage"`
	Score   int     `json:"score"`
}
