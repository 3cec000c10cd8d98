package events

import "errors"

var errBusClosed = errors.New("event bus closed")
