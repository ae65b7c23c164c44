// Package dispatch classifies incident reports and decides which stations
// and station admins they are routed to.
package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStation is returned when a station name is not one of the known stations.
var ErrUnknownStation = errors.New("unknown station")

// Station is a dispatch station.
type Station string

// Known stations.
const (
	StationPolice    Station = "police"
	StationFire      Station = "fire"
	StationAmbulance Station = "ambulance"

	// StationNone is recorded on sessions of non-admin users.
	StationNone Station = "none"
)

// All returns every dispatch station in a stable order.
func All() []Station {
	return []Station{StationPolice, StationFire, StationAmbulance}
}

// Valid reports whether s is a dispatch station. StationNone is not.
func (s Station) Valid() bool {
	switch s {
	case StationPolice, StationFire, StationAmbulance:
		return true
	default:
		return false
	}
}

func (s Station) String() string {
	return string(s)
}

// ParseStation parses a station name, case-insensitively.
func ParseStation(name string) (Station, error) {
	s := Station(strings.ToLower(strings.TrimSpace(name)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStation, name)
	}
	return s, nil
}
