package stix

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/imnitish-dev/ipenrich/details"
	"go.uber.org/zap"
)

// privacyFlags are the ipinfo privacy booleans that become labels.
var privacyFlags = []string{"vpn", "proxy", "tor", "relay", "hosting"}

// Transformer derives labels and STIX objects from one detail record.
// Labels are computed on construction. Objects are built on the first call
// to Objects and reused afterwards.
type Transformer struct {
	record      *details.Record
	author      string
	markingRefs string
	entityID    string
	now         func() time.Time
	log         *zap.Logger

	labels  []string
	objects []Object
	built   bool
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithClock sets the clock used for created/modified timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Transformer) { t.now = now }
}

// WithLogger sets the logger used while building objects.
func WithLogger(log *zap.Logger) Option {
	return func(t *Transformer) { t.log = log }
}

// NewTransformer derives the labels of rec right away; objects are built lazily.
func NewTransformer(rec *details.Record, author, markingRefs, entityID string, opts ...Option) *Transformer {
	t := &Transformer{
		record:      rec,
		author:      author,
		markingRefs: markingRefs,
		entityID:    entityID,
		now:         time.Now,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.labels = DeriveLabels(rec)
	return t
}

// Labels returns a copy of the sorted labels.
func (t *Transformer) Labels() []string {
	labels := make([]string, len(t.labels))
	copy(labels, t.labels)
	return labels
}

// Objects builds the STIX objects on the first call and returns copies of
// the same slice afterwards.
func (t *Transformer) Objects() ([]Object, error) {
	if !t.built {
		objects, err := t.build()
		if err != nil {
			return nil, err
		}
		t.objects, t.built = objects, true
	}
	return append([]Object(nil), t.objects...), nil
}

// DeriveLabels returns the sorted label set of a record.
func DeriveLabels(rec *details.Record) []string {
	set := map[string]struct{}{}
	add := func(label string) {
		if label = strings.ToLower(strings.TrimSpace(label)); label != "" {
			set[label] = struct{}{}
		}
	}

	for _, flag := range privacyFlags {
		if rec.Bool("privacy", flag) {
			add(flag)
		}
	}
	add(rec.String("privacy", "service"))
	if rec.Bool("bogon") {
		add("bogon")
	}
	if rec.Bool("anycast") {
		add("anycast")
	}
	add(rec.String("asn", "type"))
	add(rec.String("company", "type"))
	if carrier, ok := rec.Get("carrier"); ok && !carrier.IsEmpty() {
		add("mobile")
	}

	labels := make([]string, 0, len(set))
	for label := range set {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// graph accumulates objects sharing the same authoring properties.
type graph struct {
	created   string
	createdBy string
	markings  []string
	objects   []Object
}

func (g *graph) sdo(stixType, id string) Common {
	return Common{
		Type:              stixType,
		SpecVersion:       SpecVersion,
		ID:                id,
		Created:           g.created,
		Modified:          g.created,
		CreatedByRef:      g.createdBy,
		ObjectMarkingRefs: g.markings,
	}
}

func (g *graph) sco(stixType, id string) Common {
	return Common{
		Type:              stixType,
		SpecVersion:       SpecVersion,
		ID:                id,
		ObjectMarkingRefs: g.markings,
	}
}

func (g *graph) add(objects ...Object) {
	g.objects = append(g.objects, objects...)
}

func (g *graph) relate(source, relType, target string) {
	rel := &Relationship{
		Common: g.sdo("relationship", deterministicID("relationship", map[string]any{
			"relationship_type": relType,
			"source_ref":        source,
			"target_ref":        target,
		})),
		RelationshipType: relType,
		SourceRef:        source,
		TargetRef:        target,
	}
	g.add(rel)
}

func (t *Transformer) build() ([]Object, error) {
	ip := t.record.String("ip")
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("%w: %q", ErrMissingIP, ip)
	}
	ipType := "ipv6-addr"
	if v4 := parsed.To4(); v4 != nil {
		// IPv4-mapped IPv6 literals (::ffff:a.b.c.d) become plain ipv4-addr values
		ipType, ip = "ipv4-addr", v4.String()
	}

	g := &graph{created: timestamp(t.now())}

	g.createdBy = t.author
	if t.author != "" && !strings.HasPrefix(t.author, "identity--") {
		author := &Identity{
			Name:          t.author,
			IdentityClass: "organization",
		}
		author.Common = g.sdo("identity", deterministicID("identity", map[string]any{
			"name":           t.author,
			"identity_class": "organization",
		}))
		author.CreatedByRef = ""
		g.createdBy = author.ID
		g.add(author)
	}

	var defs []Object
	g.markings, defs = resolveMarkings(t.markingRefs, g.created, g.createdBy)
	g.add(defs...)

	observable := &IPAddress{
		Common: g.sco(ipType, deterministicID(ipType, map[string]any{"value": ip})),
		Value:  ip,
	}
	if t.entityID != "" {
		observable.ID = t.entityID
	}
	g.add(observable)

	if number, name, ok := autonomousSystem(t.record); ok {
		as := &AutonomousSystem{
			Common: g.sco("autonomous-system", deterministicID("autonomous-system", map[string]any{"number": number})),
			Number: number,
			Name:   name,
		}
		g.add(as)
		g.relate(observable.ID, "belongs-to", as.ID)
	}

	if located := t.locations(g); located != "" {
		g.relate(observable.ID, "located-at", located)
	}

	for _, domain := range domainNames(t.record) {
		dn := &DomainName{
			Common: g.sco("domain-name", deterministicID("domain-name", map[string]any{"value": domain})),
			Value:  domain,
		}
		g.add(dn)
		g.relate(dn.ID, "resolves-to", observable.ID)
	}

	pattern := fmt.Sprintf("[%s:value = '%s']", ipType, escapePattern(ip))
	indicator := &Indicator{
		Common:      g.sdo("indicator", deterministicID("indicator", map[string]any{"pattern": pattern})),
		Name:        ip,
		Description: indicatorDescription(t.record),
		Pattern:     pattern,
		PatternType: "stix",
		ValidFrom:   g.created,
	}
	indicator.Labels = t.Labels()
	g.add(indicator)
	g.relate(indicator.ID, "based-on", observable.ID)

	if content := details.RenderNote(t.record, t.log); content != "" {
		note := &Note{
			Common: g.sdo("note", deterministicID("note", map[string]any{
				"content":     content,
				"object_refs": []string{observable.ID},
			})),
			Abstract:   "IP lookup details for " + ip,
			Content:    content,
			ObjectRefs: []string{observable.ID},
		}
		note.Labels = t.Labels()
		g.add(note)
	}

	t.log.Debug("built stix objects", zap.String("ip", ip), zap.Int("count", len(g.objects)))
	return g.objects, nil
}

// locations emits country, region and city locations and returns the id of
// the most specific one.
func (t *Transformer) locations(g *graph) string {
	var (
		rec       = t.record
		country   = rec.String("country")
		region    = rec.String("region")
		city      = rec.String("city")
		countryID string
		regionID  string
		cityID    string
	)

	if country != "" {
		name := rec.String("country_name")
		if name == "" {
			name = country
		}
		loc := &Location{
			Common:       g.sdo("location", locationID(name, "Country")),
			Name:         name,
			Country:      country,
			LocationType: "Country",
		}
		countryID = loc.ID
		g.add(loc)
	}

	if region != "" {
		loc := &Location{
			Common:             g.sdo("location", locationID(region, "Administrative-Area")),
			Name:               region,
			Country:            country,
			AdministrativeArea: region,
			LocationType:       "Administrative-Area",
		}
		regionID = loc.ID
		g.add(loc)
		if countryID != "" {
			g.relate(regionID, "located-at", countryID)
		}
	}

	if city != "" {
		loc := &Location{
			Common:             g.sdo("location", locationID(city, "City")),
			Name:               city,
			Country:            country,
			AdministrativeArea: region,
			City:               city,
			PostalCode:         rec.String("postal"),
			LocationType:       "City",
		}
		if lat, lon, ok := coordinates(rec.String("loc")); ok {
			loc.Latitude, loc.Longitude = &lat, &lon
		}
		cityID = loc.ID
		g.add(loc)
		switch {
		case regionID != "":
			g.relate(cityID, "located-at", regionID)
		case countryID != "":
			g.relate(cityID, "located-at", countryID)
		}
	}

	switch {
	case cityID != "":
		return cityID
	case regionID != "":
		return regionID
	default:
		return countryID
	}
}

func locationID(name, locationType string) string {
	return deterministicID("location", map[string]any{
		"name":                    strings.ToLower(name),
		"x_opencti_location_type": locationType,
	})
}

// coordinates parses ipinfo's "lat,lon" string.
func coordinates(loc string) (float64, float64, bool) {
	latText, lonText, ok := strings.Cut(loc, ",")
	if !ok {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latText), 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonText), 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// autonomousSystem reads the AS from the "asn" object, or from the "AS<n>"
// prefix of "org" when the plan does not include ASN details.
func autonomousSystem(rec *details.Record) (int64, string, bool) {
	if number, ok := parseASN(rec.String("asn", "asn")); ok {
		return number, rec.String("asn", "name"), true
	}
	if number, ok := parseASN(rec.String("asn")); ok {
		return number, "", true
	}
	prefix, name, _ := strings.Cut(rec.String("org"), " ")
	if number, ok := parseASN(prefix); ok {
		return number, name, true
	}
	return 0, "", false
}

func parseASN(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 3 || !strings.EqualFold(s[:2], "AS") {
		return 0, false
	}
	number, err := strconv.ParseInt(s[2:], 10, 64)
	if err != nil || number <= 0 {
		return 0, false
	}
	return number, true
}

// domainNames returns the hostname and the hosted domains, deduplicated.
func domainNames(rec *details.Record) []string {
	var names []string
	seen := map[string]bool{}
	add := func(name string) {
		name = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	add(rec.String("hostname"))
	if v, ok := rec.Lookup("domains", "domains"); ok {
		items, _ := v.AsList()
		for _, item := range items {
			if s, ok := item.AsString(); ok {
				add(s)
			}
		}
	}
	return names
}

func indicatorDescription(rec *details.Record) string {
	var parts []string
	for _, key := range []string{"org", "city", "region", "country"} {
		if s := rec.String(key); s != "" {
			parts = append(parts, key+": "+s)
		}
	}
	return strings.Join(parts, ", ")
}

func escapePattern(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
