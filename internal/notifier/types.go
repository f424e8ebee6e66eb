package notifier

import (
	"errors"
	"time"
)

// ErrDelivery wraps every failed send.
var ErrDelivery = errors.New("delivery failed")

// Config controls rendering and send options.
type Config struct {
	// ParseMode is passed to the transport ("Markdown" by default). Values
	// are escaped only for Markdown.
	ParseMode      string
	DisablePreview bool
	// Location is used for the rendered timestamp (nil means time.Local).
	Location *time.Location
	// RatePerSec limits sends per second. 0 disables the limiter.
	RatePerSec int
	// Placeholder replaces display values that are still empty at render time.
	Placeholder string
}

// TimeLayout is the rendered timestamp format.
const TimeLayout = "2006-01-02 15:04:05"
