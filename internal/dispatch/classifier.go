package dispatch

import "strings"

// Category is the classification of an incident report.
type Category string

// Incident categories.
const (
	CategoryFireAccident     Category = "fire_accident"
	CategoryAssaultCrime     Category = "assault_crime"
	CategoryMedicalEmergency Category = "medical_emergency"
	CategoryMotorAccident    Category = "motor_accident"
)

// Label returns the category in human form, e.g. "fire accident".
func (c Category) Label() string {
	return strings.ReplaceAll(string(c), "_", " ")
}

// Route is the outcome of classifying a report type.
type Route struct {
	Category Category  `json:"category"`
	Targets  []Station `json:"targets"`
}

// Includes reports whether the route targets station s.
func (r Route) Includes(s Station) bool {
	for _, t := range r.Targets {
		if t == s {
			return true
		}
	}
	return false
}

type rule struct {
	keywords []string
	category Category
	targets  []Station
}

// Evaluated in order, first match wins.
var rules = []rule{
	{[]string{"fire"}, CategoryFireAccident, []Station{StationFire, StationAmbulance}},
	{[]string{"assault", "crime"}, CategoryAssaultCrime, []Station{StationPolice}},
	{[]string{"medical", "emergency"}, CategoryMedicalEmergency, []Station{StationAmbulance}},
}

var fallback = rule{category: CategoryMotorAccident, targets: []Station{StationPolice, StationAmbulance}}

// Classify maps a free-text incident type onto a category and its target
// stations. Every input classifies; anything unrecognised is a motor accident.
func Classify(incidentType string) Route {
	t := normalize(incidentType)
	for _, r := range rules {
		if containsAny(t, r.keywords) {
			return r.route()
		}
	}
	return fallback.route()
}

func (r rule) route() Route {
	targets := make([]Station, len(r.targets))
	copy(targets, r.targets)
	return Route{Category: r.category, Targets: targets}
}

var ambulanceKeywords = []string{"motor", "accident", "fire", "medical", "emergency"}

// Visible reports whether a report of the given type shows up in the
// station's listing. Police sees everything. The fire and ambulance
// filters overlap on purpose: fire incidents appear for both.
func Visible(s Station, incidentType string) bool {
	t := normalize(incidentType)
	switch s {
	case StationPolice:
		return true
	case StationFire:
		return strings.Contains(t, "fire")
	case StationAmbulance:
		return containsAny(t, ambulanceKeywords)
	default:
		return false
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
