package stats

import "errors"

var ErrInvalidRange = errors.New("range end is before its start")
