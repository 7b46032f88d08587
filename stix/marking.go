package stix

import (
	"strings"
)

// DefaultMarking is the marking reference applied when the caller sets none.
const DefaultMarking = "TLP:CLEAP"

// tlpMarkings lists the TLP 2.0 marking definitions by name.
var tlpMarkings = map[string]string{
	"TLP:CLEAR":        "marking-definition--94868c89-83c2-464b-929b-a1a8aa3c8487",
	"TLP:WHITE":        "marking-definition--94868c89-83c2-464b-929b-a1a8aa3c8487",
	"TLP:GREEN":        "marking-definition--bab4a63c-aed9-4cf5-a766-dfca5abac2bb",
	"TLP:AMBER":        "marking-definition--55d920b0-5e8b-4f79-9ee9-91f868d9b421",
	"TLP:AMBER+STRICT": "marking-definition--939a9414-2ddd-4d32-a0cd-375ea402b003",
	"TLP:RED":          "marking-definition--e828b379-4e03-4974-9ac4-e53a884c97c1",
}

// resolveMarkings maps a comma separated list of marking references to
// marking-definition ids. References that are neither a known TLP name nor a
// marking-definition id become statement markings, returned as new objects.
func resolveMarkings(refs, created, createdBy string) ([]string, []Object) {
	var (
		ids  []string
		defs []Object
		seen = map[string]bool{}
	)
	for _, ref := range strings.Split(refs, ",") {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}

		var id string
		switch {
		case strings.HasPrefix(ref, "marking-definition--"):
			id = ref
		case tlpMarkings[strings.ToUpper(ref)] != "":
			id = tlpMarkings[strings.ToUpper(ref)]
		default:
			def := &MarkingDefinition{
				Common: Common{
					Type:         "marking-definition",
					SpecVersion:  SpecVersion,
					ID:           deterministicID("marking-definition", map[string]any{"statement": ref}),
					Created:      created,
					CreatedByRef: createdBy,
				},
				Name:           ref,
				DefinitionType: "statement",
				Definition:     map[string]string{"statement": ref},
			}
			id = def.ID
			if !seen[id] {
				defs = append(defs, def)
			}
		}

		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, defs
}
