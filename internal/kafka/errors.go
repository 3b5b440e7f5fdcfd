package kafka

import "errors"

var errPublisherClosed = errors.New("event publisher closed")
