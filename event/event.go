// Package event writes the event metadata descriptor the platform API
// serves to players.
package event

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultDuration is the event window when the operator supplies no
// timestamps.
const DefaultDuration = 48 * time.Hour

// Event is the competition metadata descriptor.
type Event struct {
	Name        string    `toml:"name"`
	Description string    `toml:"description"`
	Start       time.Time `toml:"start"`
	End         time.Time `toml:"end"`
}

// New returns an event named after the platform domain with a default
// window starting now. Operators edit the descriptor afterwards; bootstrap
// only guarantees the platform has one to serve.
func New(platformDomain string) Event {
	start := time.Now().UTC().Truncate(time.Minute)
	return Event{
		Name:        platformDomain,
		Description: fmt.Sprintf("CTF hosted at %s", platformDomain),
		Start:       start,
		End:         start.Add(DefaultDuration),
	}
}

// Validate rejects descriptors with an empty name or inverted window.
func (e Event) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("event name must not be empty")
	}
	if !e.End.After(e.Start) {
		return fmt.Errorf("event end %s is not after start %s", e.End, e.Start)
	}
	return nil
}

// Write renders the descriptor as TOML.
func (e Event) Write(path string) error {
	if err := e.Validate(); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(e)
}

// Load reads a descriptor back, mirroring the platform's parsing.
func Load(path string) (Event, error) {
	var e Event
	if _, err := toml.DecodeFile(path, &e); err != nil {
		return Event{}, err
	}
	return e, e.Validate()
}
