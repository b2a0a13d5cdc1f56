package loadgen

import "time"

// Config holds configuration for a load run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Users         int           // Number of distinct users
	EventsPerUser int           // Outcome events per user; one recompute follows them
	Workers       int           // Number of concurrent submitters
	Timeout       time.Duration // HTTP request timeout
	Settle        time.Duration // How long to wait for the queue to drain
	Seed          uint64        // Seed of the task generator
	TeamID        string        // Team every generated task belongs to
}

// Stats holds run statistics.
type Stats struct {
	EventsGenerated  int
	EventsSubmitted  int
	EventsAccepted   int
	EventsDuplicate  int
	EventsFailed     int
	ScoresRetrieved  int
	ScoresOutOfRange int
	MinScore         float64
	MaxScore         float64
	Duration         time.Duration
}

// ackResponse mirrors the POST /events reply.
type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}
