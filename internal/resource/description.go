// Package resource declares the entity types exposed through the gateway and
// the relationships between them.
package resource

import "strings"

// Description is the schema of one exposed entity type.
type Description interface {
	Type() string
	Fields() []string
	DefaultFields() []string
	Relationships() []Description
}

// AllRelationshipDescriptions returns every distinct description reachable
// from d, deduplicated by type in first-seen order. d itself is the first entry
// when includeSelf is set.
func AllRelationshipDescriptions(d Description, includeSelf bool) []Description {
	seen := map[string]bool{d.Type(): true}
	var result []Description
	if includeSelf {
		result = append(result, d)
	}

	var walk func(node Description)
	walk = func(node Description) {
		for _, rel := range node.Relationships() {
			if seen[rel.Type()] {
				continue
			}
			seen[rel.Type()] = true
			result = append(result, rel)
			walk(rel)
		}
	}
	walk(d)

	return result
}

// AllRelationshipTypes is AllRelationshipDescriptions reduced to type names.
func AllRelationshipTypes(d Description, includeSelf bool) []string {
	descriptions := AllRelationshipDescriptions(d, includeSelf)
	types := make([]string, 0, len(descriptions))
	for _, desc := range descriptions {
		types = append(types, desc.Type())
	}
	return types
}

// AllRelationshipPaths returns one dot-joined entry for every root-to-node
// path of the relationship tree below d. A relationship whose type already
// appears on the current path ends that branch, so cyclic graphs terminate
// while the same type may still be reached through different paths.
func AllRelationshipPaths(d Description, includeSelf bool) []string {
	var paths []string

	var walk func(node Description, path []string)
	walk = func(node Description, path []string) {
		for _, rel := range node.Relationships() {
			if onPath(path, rel.Type()) {
				continue
			}
			next := append(append([]string(nil), path...), rel.Type())
			paths = append(paths, strings.Join(next[1:], "."))
			walk(rel, next)
		}
	}
	walk(d, []string{d.Type()})

	if !includeSelf {
		return paths
	}

	prefixed := make([]string, 0, len(paths)+1)
	prefixed = append(prefixed, d.Type())
	for _, p := range paths {
		prefixed = append(prefixed, d.Type()+"."+p)
	}
	return prefixed
}

// FindDescription looks up the description of typ among d and everything
// reachable from it.
func FindDescription(d Description, typ string) (Description, bool) {
	for _, desc := range AllRelationshipDescriptions(d, true) {
		if desc.Type() == typ {
			return desc, true
		}
	}
	return nil, false
}

// FieldsByType maps every type reachable from d (d included) to its fields.
func FieldsByType(d Description) map[string][]string {
	result := make(map[string][]string)
	for _, desc := range AllRelationshipDescriptions(d, true) {
		result[desc.Type()] = desc.Fields()
	}
	return result
}

// HasField reports whether field is one of d's fields.
func HasField(d Description, field string) bool {
	for _, f := range d.Fields() {
		if f == field {
			return true
		}
	}
	return false
}

func onPath(path []string, typ string) bool {
	for _, p := range path {
		if p == typ {
			return true
		}
	}
	return false
}
