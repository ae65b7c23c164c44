package dispatch

import (
	"fmt"
	"sort"
	"strings"
)

// Admin is a station administrator listed in the directory.
type Admin struct {
	Email   string  `json:"email"`
	Station Station `json:"station"`
}

// Directory maps admin emails to exactly one station. It is immutable after
// construction and safe for concurrent use.
type Directory struct {
	admins map[string]Station
}

// NewDirectory builds a directory from email to station entries.
func NewDirectory(entries map[string]Station) (*Directory, error) {
	admins := make(map[string]Station, len(entries))
	for email, station := range entries {
		if !station.Valid() {
			return nil, fmt.Errorf("admin %s: %w: %q", email, ErrUnknownStation, station)
		}
		key := normalize(email)
		if key == "" {
			return nil, fmt.Errorf("admin directory: empty email for station %s", station)
		}
		admins[key] = station
	}
	return &Directory{admins: admins}, nil
}

// DefaultDirectory returns the built-in admin accounts, one per station.
func DefaultDirectory() *Directory {
	return &Directory{admins: map[string]Station{
		"policeadmin@gmail.com":  StationPolice,
		"fireadmin@gmail.com":    StationFire,
		"medicaladmin@gmail.com": StationAmbulance,
	}}
}

// ParseDirectory parses "email=station,email=station". An empty string
// yields the default directory.
func ParseDirectory(raw string) (*Directory, error) {
	if strings.TrimSpace(raw) == "" {
		return DefaultDirectory(), nil
	}

	entries := make(map[string]Station)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		email, name, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("admin directory: malformed entry %q", pair)
		}
		station, err := ParseStation(name)
		if err != nil {
			return nil, fmt.Errorf("admin directory entry %q: %w", pair, err)
		}
		entries[email] = station
	}
	return NewDirectory(entries)
}

// Lookup returns the station of the admin with the given email.
func (d *Directory) Lookup(email string) (Station, bool) {
	s, ok := d.admins[normalize(email)]
	return s, ok
}

// AdminsFor returns the admins whose station is one of the targets,
// ordered by email.
func (d *Directory) AdminsFor(targets []Station) []Admin {
	want := make(map[Station]bool, len(targets))
	for _, t := range targets {
		want[t] = true
	}

	var admins []Admin
	for email, station := range d.admins {
		if want[station] {
			admins = append(admins, Admin{Email: email, Station: station})
		}
	}
	sort.Slice(admins, func(i, j int) bool { return admins[i].Email < admins[j].Email })
	return admins
}

// Len returns the number of admins in the directory.
func (d *Directory) Len() int {
	return len(d.admins)
}
