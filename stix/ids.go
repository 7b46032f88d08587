package stix

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// namespace is the STIX 2.1 namespace for deterministic identifiers.
var namespace = uuid.MustParse("00abedb4-aa42-466c-9c01-fed23315a9b7")

// deterministicID returns "<type>--<uuidv5>" computed over the JSON of the
// contributing properties. Map keys are serialized in sorted order.
func deterministicID(stixType string, contributing map[string]any) string {
	data, err := json.Marshal(contributing)
	if err != nil {
		return stixType + "--" + uuid.NewString()
	}
	return stixType + "--" + uuid.NewSHA1(namespace, data).String()
}

func timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
