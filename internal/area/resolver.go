// Package area derives a searchable country/state tag for a shipment leg.
// The tag is advisory metadata for supplier filtering and quick-accept
// matching only - it never gates a custody transition.
package area

import "strings"

// Unknown is the value used when nothing resolvable is present.
const Unknown = "Unknown"

// Area is the derived location tag.
type Area struct {
	Country string
	State   string
}

// Geography is the structured checkpoint location, preferred over free text.
type Geography struct {
	Country string
	State   string
}

// Input carries everything resolution may draw on, in precedence order:
// structured geography of the boundary checkpoints first, then the free-text
// origin/destination fields.
type Input struct {
	StartCheckpoint *Geography
	EndCheckpoint   *Geography
	OriginArea      string
	DestinationArea string
}

// Resolve derives {country, state} for a segment. Checkpoint geography wins;
// free text falls back to a comma-split where the first token is treated as
// state-ish and the last as country-ish ("Colombo, Western, Sri Lanka" ->
// state Colombo, country Sri Lanka). The free-text rule mis-parses many real
// addresses and is kept only as a deprecated fallback for legacy records.
func Resolve(in Input) Area {
	if a, ok := fromGeography(in.EndCheckpoint); ok {
		return a
	}
	if a, ok := fromGeography(in.StartCheckpoint); ok {
		return a
	}
	if a, ok := fromFreeText(in.DestinationArea); ok {
		return a
	}
	if a, ok := fromFreeText(in.OriginArea); ok {
		return a
	}
	return Area{Country: Unknown, State: Unknown}
}

func fromGeography(g *Geography) (Area, bool) {
	if g == nil || g.Country == "" {
		return Area{}, false
	}
	state := g.State
	if state == "" {
		state = Unknown
	}
	return Area{Country: g.Country, State: state}, true
}

func fromFreeText(text string) (Area, bool) {
	parts := strings.Split(text, ",")
	tokens := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tokens = append(tokens, t)
		}
	}
	switch len(tokens) {
	case 0:
		return Area{}, false
	case 1:
		return Area{Country: tokens[0], State: Unknown}, true
	default:
		return Area{Country: tokens[len(tokens)-1], State: tokens[0]}, true
	}
}
