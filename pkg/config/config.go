// Package config holds the process-wide, settable default tables referenced
// throughout graph construction: per-highway-class maxspeed/lane defaults,
// lane-efficiency factors, and the network-type exclusion rules. Values are
// captured by the graph builder at Build time, not held live by reference.
package config

import "sync"

// NetworkType selects which ways are retained from a raw OSM extract.
type NetworkType string

const (
	Drive         NetworkType = "drive"
	DriveService  NetworkType = "drive_service"
	Walk          NetworkType = "walk"
	Bike          NetworkType = "bike"
	All           NetworkType = "all"
	AllPrivate    NetworkType = "all_private"
	None          NetworkType = "none"
	Rail          NetworkType = "rail"
	DriveMainroads NetworkType = "drive_mainroads"
)

// ExclusionRule is a (tag key, disallowed values) pair applied as one
// conjunctive exclusion clause to a way's tags: the way is dropped if the
// tag named Key holds any value in Values.
type ExclusionRule struct {
	Key    string
	Values map[string]bool
}

// WeightType selects the per-edge cost function (§4.3).
type WeightType string

const (
	WeightDistance       WeightType = "distance"
	WeightTime           WeightType = "time"
	WeightLaneEfficiency WeightType = "lane_efficiency"
)

// Config holds the configurable default tables (§6 Configuration).
type Config struct {
	Maxspeeds       map[string]int         // highway class -> km/h; must include "other"
	Lanes           map[string]int         // highway class -> lane count; must include "other"
	LaneEfficiency  map[int]float64        // lane count -> efficiency factor in (0,1]
	NetworkFilters  map[NetworkType][]ExclusionRule
	OnewayDefaults  map[string]bool // highway class -> default oneway, used when tag absent
	BuildingHeightPerLevel float64
	MaxBuildingLevels     int
}

var (
	mu      sync.RWMutex
	current = Default()
)

// Set installs cfg as the process-wide configuration. Safe for concurrent
// use; a Build call running concurrently with Set may observe either the
// old or the new config (no tearing), matching §6's "set at startup or
// between builds" lifecycle.
func Set(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	current = cfg
}

// Current returns the process-wide configuration in effect right now.
func Current() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Maxspeeds: map[string]int{
			"motorway":       100,
			"motorway_link":  70,
			"trunk":          85,
			"trunk_link":     60,
			"primary":        65,
			"primary_link":   50,
			"secondary":      60,
			"secondary_link": 50,
			"tertiary":       50,
			"tertiary_link":  40,
			"unclassified":   40,
			"residential":    30,
			"living_street":  15,
			"service":        20,
			"other":          30,
		},
		Lanes: map[string]int{
			"motorway":     3,
			"trunk":        2,
			"primary":      2,
			"secondary":    2,
			"tertiary":     1,
			"residential":  1,
			"service":      1,
			"other":        1,
		},
		LaneEfficiency: map[int]float64{
			1: 0.7,
			2: 0.8,
			3: 0.9,
			4: 1.0,
		},
		OnewayDefaults: map[string]bool{
			"motorway":      true,
			"motorway_link": true,
		},
		NetworkFilters: map[NetworkType][]ExclusionRule{
			Drive: {
				{Key: "access", Values: set("no", "private")},
				{Key: "motor_vehicle", Values: set("no")},
				{Key: "highway", Values: set("footway", "cycleway", "path", "steps", "pedestrian", "bridleway", "construction", "proposed", "platform", "corridor")},
			},
			DriveService: {
				{Key: "access", Values: set("no", "private")},
				{Key: "highway", Values: set("footway", "cycleway", "path", "steps", "pedestrian", "bridleway", "construction", "proposed", "platform", "corridor")},
			},
			Walk: {
				{Key: "access", Values: set("no", "private")},
				{Key: "highway", Values: set("motorway", "motorway_link", "construction", "proposed", "platform", "corridor")},
			},
			Bike: {
				{Key: "access", Values: set("no", "private")},
				{Key: "bicycle", Values: set("no")},
				{Key: "highway", Values: set("motorway", "motorway_link", "steps", "construction", "proposed")},
			},
			All: {},
			AllPrivate: {
				{Key: "highway", Values: set("construction", "proposed")},
			},
			None: {},
			Rail: {
				{Key: "service", Values: set("siding", "spur", "yard")},
			},
			DriveMainroads: {
				{Key: "access", Values: set("no", "private")},
				{Key: "highway", Values: set("footway", "cycleway", "path", "steps", "pedestrian", "bridleway",
					"construction", "proposed", "platform", "corridor", "residential", "service",
					"living_street", "unclassified", "tertiary", "tertiary_link")},
			},
		},
		BuildingHeightPerLevel: 3.0,
		MaxBuildingLevels:      4,
	}
}

func set(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

// MaxspeedFor returns the configured default maxspeed for a highway class,
// falling back to the "other" class when the class is unknown.
func (c *Config) MaxspeedFor(class string) int {
	if v, ok := c.Maxspeeds[class]; ok {
		return v
	}
	return c.Maxspeeds["other"]
}

// LanesFor returns the configured default lane count for a highway class,
// falling back to the "other" class when the class is unknown.
func (c *Config) LanesFor(class string) int {
	if v, ok := c.Lanes[class]; ok {
		return v
	}
	return c.Lanes["other"]
}

// LaneEfficiencyFor returns the configured efficiency factor for a lane
// count, defaulting to 1.0 for counts outside the table (§4.3).
func (c *Config) LaneEfficiencyFor(lanes int) float64 {
	if v, ok := c.LaneEfficiency[lanes]; ok {
		return v
	}
	return 1.0
}

// OnewayDefaultFor returns the default oneway-ness for a highway class when
// the way carries no oneway tag at all.
func (c *Config) OnewayDefaultFor(class string) bool {
	return c.OnewayDefaults[class]
}

// Excluded reports whether tags match any exclusion rule configured for
// networkType — §4.2 step 1's "does not match any exclusion rule" test.
func (c *Config) Excluded(networkType NetworkType, tags map[string]string) bool {
	rules := c.NetworkFilters[networkType]
	for _, rule := range rules {
		if rule.Values[tags[rule.Key]] {
			return true
		}
	}
	return false
}
