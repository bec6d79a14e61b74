package models

import "time"

// DraftState is the full snapshot a client loads on connect and after a
// delivery gap. SecondsRemaining is computed against ServerTime.
type DraftState struct {
	Draft            Draft         `json:"draft"`
	Participants     []Participant `json:"participants"`
	Resources        []Resource    `json:"resources"`
	Picks            []Pick        `json:"picks"`
	CurrentDrafter   *Participant  `json:"current_drafter,omitempty"`
	SecondsRemaining int           `json:"seconds_remaining"`
	ServerTime       time.Time     `json:"server_time"`
}
