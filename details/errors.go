package details

import "errors"

var (
	ErrNotObject    = errors.New("detail record is not a JSON object")
	ErrTrailingData = errors.New("trailing data after detail record")
)
