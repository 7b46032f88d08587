// Package stix turns a lookup detail record into STIX 2.1 objects and labels.
package stix

const SpecVersion = "2.1"

// Object is any STIX object the transformer emits.
type Object interface {
	StixID() string
	StixType() string
}

// Common holds the properties shared by all emitted objects. Cyber
// observables leave the timestamps and created_by_ref empty.
type Common struct {
	Type              string   `json:"type"`
	SpecVersion       string   `json:"spec_version"`
	ID                string   `json:"id"`
	Created           string   `json:"created,omitempty"`
	Modified          string   `json:"modified,omitempty"`
	CreatedByRef      string   `json:"created_by_ref,omitempty"`
	Labels            []string `json:"labels,omitempty"`
	ObjectMarkingRefs []string `json:"object_marking_refs,omitempty"`
}

func (c *Common) StixID() string   { return c.ID }
func (c *Common) StixType() string { return c.Type }

type Identity struct {
	Common
	Name          string `json:"name"`
	IdentityClass string `json:"identity_class"`
}

type MarkingDefinition struct {
	Common
	Name           string            `json:"name,omitempty"`
	DefinitionType string            `json:"definition_type"`
	Definition     map[string]string `json:"definition"`
}

// IPAddress is an ipv4-addr or ipv6-addr observable.
type IPAddress struct {
	Common
	Value string `json:"value"`
}

type AutonomousSystem struct {
	Common
	Number int64  `json:"number"`
	Name   string `json:"name,omitempty"`
}

type DomainName struct {
	Common
	Value string `json:"value"`
}

type Location struct {
	Common
	Name               string   `json:"name"`
	Country            string   `json:"country,omitempty"`
	AdministrativeArea string   `json:"administrative_area,omitempty"`
	City               string   `json:"city,omitempty"`
	PostalCode         string   `json:"postal_code,omitempty"`
	Latitude           *float64 `json:"latitude,omitempty"`
	Longitude          *float64 `json:"longitude,omitempty"`
	LocationType       string   `json:"x_opencti_location_type,omitempty"`
}

type Indicator struct {
	Common
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Pattern     string `json:"pattern"`
	PatternType string `json:"pattern_type"`
	ValidFrom   string `json:"valid_from"`
}

type Relationship struct {
	Common
	RelationshipType string `json:"relationship_type"`
	SourceRef        string `json:"source_ref"`
	TargetRef        string `json:"target_ref"`
}

type Note struct {
	Common
	Abstract   string   `json:"abstract,omitempty"`
	Content    string   `json:"content"`
	ObjectRefs []string `json:"object_refs"`
}

type Bundle struct {
	Type    string   `json:"type"`
	ID      string   `json:"id"`
	Objects []Object `json:"objects"`
}

// NewBundle wraps objects in a bundle whose id is derived from the object ids.
func NewBundle(objects []Object) *Bundle {
	ids := make([]string, 0, len(objects))
	for _, obj := range objects {
		ids = append(ids, obj.StixID())
	}
	if objects == nil {
		objects = []Object{}
	}
	return &Bundle{
		Type:    "bundle",
		ID:      deterministicID("bundle", map[string]any{"objects": ids}),
		Objects: objects,
	}
}
