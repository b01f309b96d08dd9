package settings

import "sort"

// Presence is the bit flag collected by LoadWithMeta.
type Presence uint8

const (
	PresenceSeen           Presence = 1 << iota // Value appeared in some source.
	PresenceWasNull                             // Value was null.
	PresenceDefaultApplied                      // Default literal was applied.
	PresenceFromFile                            // Value came from configuration text.
	PresenceFromEnv                             // Value came from an environment variable.
)

// PresenceMap maps JSON Pointers to Presence flags.
type PresenceMap map[string]Presence

// Has reports whether all flags are set for ptr.
func (pm PresenceMap) Has(ptr string, flags Presence) bool {
	return pm[ptr]&flags == flags
}

// Pointers returns the recorded pointers sorted.
func (pm PresenceMap) Pointers() []string {
	out := make([]string, 0, len(pm))
	for k := range pm {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Decoded carries the loaded value along with presence metadata.
type Decoded[T any] struct {
	Value    T
	Presence PresenceMap
}

// collectPresence marks every path of v with flag, plus PresenceWasNull for
// nulls. Containers are walked; the root itself is marked by the caller.
func collectPresence(pm PresenceMap, v any, cur Path, flag Presence) {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			p := cur.Append(Key(k))
			mark(pm, p, val, flag)
			collectPresence(pm, val, p, flag)
		}
	case []any:
		for i, val := range t {
			p := cur.Append(Index(i))
			mark(pm, p, val, flag)
			collectPresence(pm, val, p, flag)
		}
	}
}

func mark(pm PresenceMap, p Path, val any, flag Presence) {
	f := PresenceSeen | flag
	if val == nil {
		f |= PresenceWasNull
	}
	pm[p.Pointer()] |= f
}

// buildPresence merges the provenance of document and environment values
// and the defaults applied while binding.
func buildPresence(doc map[string]any, env map[string]any, defaults []Path) PresenceMap {
	pm := PresenceMap{"/": PresenceSeen}
	collectPresence(pm, doc, nil, PresenceFromFile)
	collectPresence(pm, env, nil, PresenceFromEnv)
	for _, p := range defaults {
		pm[p.Pointer()] |= PresenceDefaultApplied
	}
	return pm
}
