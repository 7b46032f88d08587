package lookup

import (
	"net"
	"strings"

	"github.com/imnitish-dev/ipenrich/details"
	"github.com/ip2location/ip2location-go/v9"
)

// usageTypes maps IP2Location usage codes onto ipinfo company types.
var usageTypes = map[string]string{
	"COM": "business",
	"ORG": "business",
	"DCH": "hosting",
	"CDN": "hosting",
	"ISP": "isp",
	"MOB": "isp",
	"EDU": "education",
	"GOV": "government",
	"MIL": "government",
}

func (d *Database) lookupIP2Location(ip net.IP) (*details.Record, error) {
	results, err := d.ip2locDB.Get_all(ip.String())
	if err != nil {
		return nil, err
	}
	return ip2locationRecord(ip, results), nil
}

// ip2locationRecord maps an IP2Location result onto ipinfo keys.
func ip2locationRecord(ip net.IP, results ip2location.IP2Locationrecord) *details.Record {
	rec := details.NewRecord().Set("ip", details.StringValue(ip.String()))
	setString(rec, "city", ip2locField(results.City))
	setString(rec, "region", ip2locField(results.Region))
	setString(rec, "country", ip2locField(results.Country_short))
	setString(rec, "country_name", ip2locField(results.Country_long))
	if results.Latitude != 0 || results.Longitude != 0 {
		rec.Set("loc", details.StringValue(formatLoc(float64(results.Latitude), float64(results.Longitude))))
	}
	setString(rec, "postal", ip2locField(results.Zipcode))
	setString(rec, "timezone", ip2locField(results.Timezone))
	setString(rec, "org", ip2locField(results.Isp))

	company := details.NewRecord()
	setString(company, "name", ip2locField(results.Isp))
	setString(company, "domain", ip2locField(results.Domain))
	for _, code := range strings.Split(ip2locField(results.Usagetype), "/") {
		if kind, ok := usageTypes[code]; ok {
			company.Set("type", details.StringValue(kind))
			break
		}
	}
	if company.Len() > 0 {
		rec.Set("company", details.MapValue(company))
	}

	return rec
}

// ip2locField drops the placeholders the library returns for fields missing
// from the loaded database edition.
func ip2locField(value string) string {
	value = strings.TrimSpace(value)
	if value == "-" || strings.Contains(value, "unavailable for selected data file") {
		return ""
	}
	return value
}
