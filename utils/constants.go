package utils

import (
	"time"
)

// Dispatch defaults
const (
	// DispatchBatchSize is the number of pending contacts loaded per enumeration step
	DispatchBatchSize = 100

	// SendTaskTimeout bounds one send attempt including the transport call
	SendTaskTimeout = 60 * time.Second

	// OutcomeWriteTimeout bounds recording a send outcome once the attempt itself has ended
	OutcomeWriteTimeout = 10 * time.Second

	// DispatchProgressTimeout bounds saving the dispatch cursor after enumeration stopped
	DispatchProgressTimeout = 5 * time.Second

	// SendTaskMaxAttempts is the number of times infrastructure may run a send task
	SendTaskMaxAttempts = 3

	// SendRetryBackoff is the delay before the second attempt; later attempts wait n times as long
	SendRetryBackoff = 2 * time.Second

	// DefaultSchedulerInterval is how often due scheduled campaigns are polled
	DefaultSchedulerInterval = 15 * time.Second

	// MinPhoneDigits is the minimum number of digits for a contact phone number
	MinPhoneDigits = 10
)

// Upload limits
const (
	// MaxUploadSize is the maximum accepted contact file size (10MB)
	MaxUploadSize = 10 * 1024 * 1024
)

// Inbound messaging
const (
	// EmptyTwiMLResponse acknowledges an inbound webhook without further action
	EmptyTwiMLResponse = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

	// AutoReplyTemplate is sent when an inbound body matches a booking keyword
	AutoReplyTemplate = "Thanks for your message, you can book a time with me here: %s"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)
