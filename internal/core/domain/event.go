package domain

import "time"

// Event is one entry of the engine's event feed. The monitor only uses it
// as a "something changed" hint; the fields are kept for logging.
type Event struct {
	Type       string
	Action     string
	ActorID    string
	Attributes map[string]string
	Time       time.Time
}
