package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

var errInvalidJSON = errors.New("invalid JSON")

// RelationData is the static input the optimizer is built from.
type RelationData struct {
	Members    []RelationMember
	Values     []RelationValue
	Characters []Character
}

// Index builds the relation index for this data.
func (d *RelationData) Index() *RelationIndex {
	return NewRelationIndex(d.Members, d.Values)
}

// Pool returns the ids of released characters in catalog order.
func (d *RelationData) Pool() []CharacterID {
	var out []CharacterID
	for _, c := range d.Characters {
		if c.Released {
			out = append(out, c.ID)
		}
	}
	return out
}

// Names maps character ids to catalog names.
func (d *RelationData) Names() map[CharacterID]string {
	m := make(map[CharacterID]string, len(d.Characters))
	for _, c := range d.Characters {
		m[c.ID] = c.Name
	}
	return m
}

// LoadRelationData reads the relation member, relation value and character
// catalog files. An empty charactersPath skips the catalog.
func LoadRelationData(membersPath, valuesPath, charactersPath string) (*RelationData, error) {
	membersJSON, err := readJSONFile(membersPath)
	if err != nil {
		return nil, err
	}
	valuesJSON, err := readJSONFile(valuesPath)
	if err != nil {
		return nil, err
	}
	d := &RelationData{
		Members: parseRelationMembers(membersJSON),
		Values:  parseRelationValues(valuesJSON),
	}
	if charactersPath != "" {
		charsJSON, err := readJSONFile(charactersPath)
		if err != nil {
			return nil, err
		}
		d.Characters = parseCharacters(charsJSON)
	}
	return d, nil
}

func readJSONFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	s := string(raw)
	if !gjson.Valid(s) {
		return "", fmt.Errorf("parse %s: %w", path, errInvalidJSON)
	}
	return s, nil
}

// parseRelationMembers reads an array of {id, relation_type, chara_id}.
// Records without a character id are skipped.
func parseRelationMembers(js string) []RelationMember {
	var out []RelationMember
	gjson.Parse(js).ForEach(func(_, v gjson.Result) bool {
		id := CharacterID(v.Get("chara_id").Int())
		if id == 0 {
			return true
		}
		out = append(out, RelationMember{
			ID:           int(v.Get("id").Int()),
			RelationType: RelationType(v.Get("relation_type").Int()),
			CharaID:      id,
		})
		return true
	})
	return out
}

// parseRelationValues reads an array of {relation_type, relation_point}.
func parseRelationValues(js string) []RelationValue {
	var out []RelationValue
	gjson.Parse(js).ForEach(func(_, v gjson.Result) bool {
		out = append(out, RelationValue{
			RelationType:  RelationType(v.Get("relation_type").Int()),
			RelationPoint: int(v.Get("relation_point").Int()),
		})
		return true
	})
	return out
}

// parseCharacters reads an array of {id, name, released}.
func parseCharacters(js string) []Character {
	var out []Character
	gjson.Parse(js).ForEach(func(_, v gjson.Result) bool {
		id := CharacterID(v.Get("id").Int())
		if id == 0 {
			return true
		}
		out = append(out, Character{
			ID:       id,
			Name:     v.Get("name").String(),
			Released: toBool(v.Get("released")),
		})
		return true
	})
	return out
}

func toBool(v gjson.Result) bool {
	switch v.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return v.Int() == 1
	}
	return false
}

// readIDList reads a JSON array of ids; nulls and non-numbers become 0.
func readIDList(v gjson.Result) []CharacterID {
	arr := v.Array()
	out := make([]CharacterID, len(arr))
	for i, item := range arr {
		if item.Type == gjson.Number {
			out[i] = CharacterID(item.Int())
		}
	}
	return out
}
