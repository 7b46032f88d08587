package lookup

import (
	"fmt"
	"net"

	"github.com/imnitish-dev/ipenrich/details"
	"github.com/oschwald/geoip2-golang"
)

func (d *Database) lookupMaxMind(ip net.IP) (*details.Record, error) {
	city, err := d.maxmindDB.City(ip)
	if err != nil {
		return nil, err
	}

	// City databases refuse ASN lookups; only ASN files fill "org".
	asn, err := d.maxmindDB.ASN(ip)
	if err != nil {
		asn = nil
	}

	return maxmindRecord(ip, city, asn), nil
}

// maxmindRecord maps a MaxMind city (and optional ASN) result onto ipinfo keys.
func maxmindRecord(ip net.IP, city *geoip2.City, asn *geoip2.ASN) *details.Record {
	rec := details.NewRecord().Set("ip", details.StringValue(ip.String()))
	if city == nil {
		city = &geoip2.City{}
	}

	setString(rec, "city", city.City.Names["en"])
	if len(city.Subdivisions) > 0 {
		setString(rec, "region", city.Subdivisions[0].Names["en"])
	}
	setString(rec, "country", city.Country.IsoCode)
	setString(rec, "country_name", city.Country.Names["en"])
	setString(rec, "continent", city.Continent.Code)
	if city.Location.Latitude != 0 || city.Location.Longitude != 0 {
		rec.Set("loc", details.StringValue(formatLoc(city.Location.Latitude, city.Location.Longitude)))
	}
	setString(rec, "postal", city.Postal.Code)
	setString(rec, "timezone", city.Location.TimeZone)

	if asn != nil && asn.AutonomousSystemNumber != 0 {
		rec.Set("org", details.StringValue(fmt.Sprintf("AS%d %s", asn.AutonomousSystemNumber, asn.AutonomousSystemOrganization)))
	}

	if city.Traits.IsAnonymousProxy || city.Traits.IsSatelliteProvider {
		rec.Set("privacy", details.MapValue(details.NewRecord().
			Set("proxy", details.BoolValue(city.Traits.IsAnonymousProxy)).
			Set("relay", details.BoolValue(city.Traits.IsSatelliteProvider))))
	}

	return rec
}
