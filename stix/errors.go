package stix

import "errors"

var ErrMissingIP = errors.New("detail record has no valid ip")
