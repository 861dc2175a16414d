package report

import (
	"fmt"
	"math"
	"strings"
)

// Schema selects the shape of the per image detection payload
type Schema string

const (
	// SchemaA writes the projected center and vertices of each object plus
	// a pose list holding the position only
	SchemaA Schema = "A"
	// SchemaB writes the eight projected vertices of each object plus a pose
	// list holding the position and the orientation quaternion
	SchemaB Schema = "B"
	// SchemaC writes the raw location, quaternion, 2D cuboid, projected
	// cuboid, silhouette and score of every detection
	SchemaC Schema = "C"
)

// ParseSchema converts a configuration value to a Schema
func ParseSchema(val string) (Schema, error) {
	switch s := Schema(strings.ToUpper(strings.TrimSpace(val))); s {
	case SchemaA, SchemaB, SchemaC:
		return s, nil
	}

	return "", fmt.Errorf("unknown report schema %q, expected A, B or C", val)
}

// DefaultRounding returns the rounding policy a schema uses unless
// configured otherwise
func (s Schema) DefaultRounding() Rounding {
	if s == SchemaB {
		return Round3
	}

	return RoundIdentity
}

// Rounding is the numeric formatting policy applied to every value written
type Rounding int

const (
	// RoundIdentity writes values at full precision
	RoundIdentity Rounding = iota
	// Round3 rounds values to 3 decimal places
	Round3
)

// ParseRounding converts a configuration value to a Rounding.  An empty
// value returns ok false so the schema default is used.
func ParseRounding(val string) (r Rounding, ok bool, err error) {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "", "default":
		return RoundIdentity, false, nil
	case "identity", "none":
		return RoundIdentity, true, nil
	case "round3", "3":
		return Round3, true, nil
	}

	return RoundIdentity, false, fmt.Errorf("unknown rounding %q, expected identity or round3", val)
}

// Apply formats v according to the policy.  Round3 is idempotent.
func (r Rounding) Apply(v float64) float64 {
	if r == Round3 {
		return math.Round(v*1000) / 1000
	}

	return v
}

// String returns the configuration name of the policy
func (r Rounding) String() string {
	if r == Round3 {
		return "round3"
	}

	return "identity"
}
