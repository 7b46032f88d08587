package stix

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/imnitish-dev/ipenrich/details"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const googleDNS = `{
  "ip": "8.8.8.8",
  "hostname": "dns.google",
  "anycast": true,
  "city": "Mountain View",
  "region": "California",
  "country": "US",
  "loc": "37.4056,-122.0775",
  "org": "AS15169 Google LLC",
  "postal": "94043",
  "timezone": "America/Los_Angeles",
  "asn": {"asn": "AS15169", "name": "Google LLC", "domain": "google.com", "route": "8.8.8.0/24", "type": "hosting"},
  "company": {"name": "Google LLC", "domain": "google.com", "type": "hosting"},
  "privacy": {"vpn": false, "proxy": false, "tor": false, "relay": false, "hosting": true, "service": ""},
  "domains": {"ip": "8.8.8.8", "total": 2, "domains": ["dns.google", "8888.google"]}
}`

var fixedClock = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

func mustRecord(t *testing.T, raw string) *details.Record {
	t.Helper()
	rec, err := details.DecodeRecord([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	return rec
}

func byType(objects []Object) map[string][]Object {
	out := map[string][]Object{}
	for _, obj := range objects {
		out[obj.StixType()] = append(out[obj.StixType()], obj)
	}
	return out
}

func TestDeriveLabels(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{"google dns", googleDNS, []string{"anycast", "hosting"}},
		{"empty", `{"ip": "1.1.1.1"}`, []string{}},
		{"privacy", `{"privacy": {"vpn": true, "tor": true, "service": "NordVPN"}, "bogon": true}`, []string{"bogon", "nordvpn", "tor", "vpn"}},
		{"mobile", `{"carrier": {"name": "T-Mobile", "mcc": "310", "mnc": "160"}, "asn": {"type": "isp"}}`, []string{"isp", "mobile"}},
		{"empty carrier", `{"carrier": {}}`, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveLabels(mustRecord(t, tc.raw))
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("labels mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTransformerObjects(t *testing.T) {
	tr := NewTransformer(mustRecord(t, googleDNS), "Hostio", "TLP:AMBER", "", WithClock(fixedClock))

	objects, err := tr.Objects()
	if err != nil {
		t.Fatal(err)
	}
	types := byType(objects)

	counts := map[string]int{}
	for typ, objs := range types {
		counts[typ] = len(objs)
	}
	wantCounts := map[string]int{
		"identity":          1,
		"ipv4-addr":         1,
		"autonomous-system": 1,
		"location":          3,
		"domain-name":       2,
		"indicator":         1,
		"note":              1,
		// belongs-to, region->country, city->region, ip->city,
		// 2x resolves-to, based-on
		"relationship": 7,
	}
	if diff := cmp.Diff(wantCounts, counts); diff != "" {
		t.Fatalf("object counts mismatch (-want +got):\n%s", diff)
	}

	author := types["identity"][0].(*Identity)
	if author.Name != "Hostio" || author.IdentityClass != "organization" {
		t.Fatalf("author = %+v", author)
	}

	ip := types["ipv4-addr"][0].(*IPAddress)
	if ip.Value != "8.8.8.8" || !strings.HasPrefix(ip.ID, "ipv4-addr--") {
		t.Fatalf("observable = %+v", ip)
	}
	if diff := cmp.Diff([]string{tlpMarkings["TLP:AMBER"]}, ip.ObjectMarkingRefs); diff != "" {
		t.Fatalf("markings mismatch (-want +got):\n%s", diff)
	}

	as := types["autonomous-system"][0].(*AutonomousSystem)
	if as.Number != 15169 || as.Name != "Google LLC" {
		t.Fatalf("autonomous system = %+v", as)
	}

	indicator := types["indicator"][0].(*Indicator)
	if indicator.Pattern != "[ipv4-addr:value = '8.8.8.8']" {
		t.Fatalf("pattern = %q", indicator.Pattern)
	}
	if indicator.CreatedByRef != author.ID {
		t.Fatalf("created_by_ref = %q, want %q", indicator.CreatedByRef, author.ID)
	}
	if indicator.ValidFrom != "2024-03-01T12:00:00.000Z" {
		t.Fatalf("valid_from = %q", indicator.ValidFrom)
	}
	if diff := cmp.Diff([]string{"anycast", "hosting"}, indicator.Labels); diff != "" {
		t.Fatalf("indicator labels mismatch (-want +got):\n%s", diff)
	}

	var city *Location
	for _, obj := range types["location"] {
		if loc := obj.(*Location); loc.LocationType == "City" {
			city = loc
		}
	}
	if city == nil || city.Latitude == nil || *city.Latitude != 37.4056 || *city.Longitude != -122.0775 {
		t.Fatalf("city = %+v", city)
	}

	var locatedAt bool
	for _, obj := range types["relationship"] {
		rel := obj.(*Relationship)
		if rel.SourceRef == ip.ID && rel.RelationshipType == "located-at" && rel.TargetRef == city.ID {
			locatedAt = true
		}
	}
	if !locatedAt {
		t.Fatal("missing ip located-at city relationship")
	}

	note := types["note"][0].(*Note)
	if diff := cmp.Diff([]string{ip.ID}, note.ObjectRefs); diff != "" {
		t.Fatalf("note refs mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(note.Content, "**ip**:\t`8.8.8.8`\n\n**hostname**:\t`dns.google`") {
		t.Fatalf("note content = %q", note.Content)
	}
}

func TestTransformerDeterministic(t *testing.T) {
	ids := func() []string {
		objects, err := NewTransformer(mustRecord(t, googleDNS), "Hostio", DefaultMarking, "", WithClock(fixedClock)).Objects()
		if err != nil {
			t.Fatal(err)
		}
		out := make([]string, 0, len(objects))
		for _, obj := range objects {
			out = append(out, obj.StixID())
		}
		return out
	}
	if diff := cmp.Diff(ids(), ids()); diff != "" {
		t.Fatalf("ids differ between runs (-first +second):\n%s", diff)
	}
}

func TestTransformerEntityIDAndAuthorRef(t *testing.T) {
	const (
		entityID = "ipv6-addr--0c5e4ba7-3e7a-5c3e-9d4c-0f1f3a1c7e11"
		authorID = "identity--2f0e4a4d-3b9f-4d0e-9f0a-6f4d0c1e2b3a"
	)
	rec := mustRecord(t, `{"ip": "2001:4860:4860::8888", "country": "US"}`)

	objects, err := NewTransformer(rec, authorID, "", entityID).Objects()
	if err != nil {
		t.Fatal(err)
	}
	types := byType(objects)

	if len(types["identity"]) != 0 {
		t.Fatal("author given as an identity id must not produce an identity object")
	}
	ip := types["ipv6-addr"][0].(*IPAddress)
	if ip.ID != entityID {
		t.Fatalf("observable id = %q, want entity id", ip.ID)
	}
	indicator := types["indicator"][0].(*Indicator)
	if indicator.Pattern != "[ipv6-addr:value = '2001:4860:4860::8888']" || indicator.CreatedByRef != authorID {
		t.Fatalf("indicator = %+v", indicator)
	}
	if len(indicator.ObjectMarkingRefs) != 0 {
		t.Fatalf("markings = %v, want none", indicator.ObjectMarkingRefs)
	}
}

func TestTransformerIPv4MappedAddress(t *testing.T) {
	objects, err := NewTransformer(mustRecord(t, `{"ip": "::ffff:1.2.3.4"}`), "Hostio", DefaultMarking, "", WithClock(fixedClock)).Objects()
	if err != nil {
		t.Fatal(err)
	}
	types := byType(objects)

	if len(types["ipv6-addr"]) != 0 || len(types["ipv4-addr"]) != 1 {
		t.Fatalf("observables = %v", types)
	}
	ip := types["ipv4-addr"][0].(*IPAddress)
	if ip.Value != "1.2.3.4" {
		t.Fatalf("value = %q, want 1.2.3.4", ip.Value)
	}
	indicator := types["indicator"][0].(*Indicator)
	if indicator.Pattern != "[ipv4-addr:value = '1.2.3.4']" {
		t.Fatalf("pattern = %q", indicator.Pattern)
	}

	plain, err := NewTransformer(mustRecord(t, `{"ip": "1.2.3.4"}`), "Hostio", DefaultMarking, "", WithClock(fixedClock)).Objects()
	if err != nil {
		t.Fatal(err)
	}
	if got := byType(plain)["ipv4-addr"][0].StixID(); got != ip.ID {
		t.Fatalf("mapped and plain ids differ: %s vs %s", ip.ID, got)
	}
}

func TestTransformerMissingIP(t *testing.T) {
	_, err := NewTransformer(mustRecord(t, `{"city": "Paris"}`), "Hostio", DefaultMarking, "").Objects()
	if !errors.Is(err, ErrMissingIP) {
		t.Fatalf("error = %v, want ErrMissingIP", err)
	}
}

func TestTransformerCachesObjects(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tr := NewTransformer(mustRecord(t, `{"ip": "1.1.1.1"}`), "Hostio", DefaultMarking, "", WithLogger(zap.New(core)))

	first, err := tr.Objects()
	if err != nil {
		t.Fatal(err)
	}
	second, err := tr.Objects()
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("object %d was rebuilt", i)
		}
	}
	if n := logs.FilterMessage("built stix objects").Len(); n != 1 {
		t.Fatalf("build count = %d, want 1", n)
	}
}

func TestResolveMarkings(t *testing.T) {
	ids, defs := resolveMarkings("tlp:green, TLP:CLEAP, TLP:GREEN, marking-definition--x", "2024-03-01T12:00:00.000Z", "identity--a")

	if len(defs) != 1 {
		t.Fatalf("defs = %d, want 1 statement marking", len(defs))
	}
	def := defs[0].(*MarkingDefinition)
	if def.DefinitionType != "statement" || def.Definition["statement"] != "TLP:CLEAP" {
		t.Fatalf("statement marking = %+v", def)
	}

	want := []string{tlpMarkings["TLP:GREEN"], def.ID, "marking-definition--x"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestBundleJSON(t *testing.T) {
	objects, err := NewTransformer(mustRecord(t, `{"ip": "1.1.1.1"}`), "", "TLP:CLEAR", "", WithClock(fixedClock)).Objects()
	if err != nil {
		t.Fatal(err)
	}

	raw, err := json.Marshal(NewBundle(objects))
	if err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		Type    string           `json:"type"`
		ID      string           `json:"id"`
		Objects []map[string]any `json:"objects"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Type != "bundle" || !strings.HasPrefix(decoded.ID, "bundle--") {
		t.Fatalf("bundle header = %s %s", decoded.Type, decoded.ID)
	}
	if len(decoded.Objects) != len(objects) {
		t.Fatalf("objects = %d, want %d", len(decoded.Objects), len(objects))
	}
	first := decoded.Objects[0]
	if first["type"] != "ipv4-addr" || first["value"] != "1.1.1.1" || first["spec_version"] != "2.1" {
		t.Fatalf("first object = %v", first)
	}
	if _, ok := first["created"]; ok {
		t.Fatal("observables carry no created timestamp")
	}
}

func TestParseASN(t *testing.T) {
	for in, want := range map[string]int64{"AS15169": 15169, "as13335": 13335, "AS": 0, "ASx": 0, "15169": 0} {
		got, ok := parseASN(in)
		if got != want || ok != (want != 0) {
			t.Errorf("parseASN(%q) = %d, %v", in, got, ok)
		}
	}
}
