package symmetry

import (
	"fmt"
	"strings"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Axis selects the coordinate that the symmetry plane is perpendicular to.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// ParseAxis accepts "x", "y", "z" (any case) or "0", "1", "2".
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x", "0":
		return AxisX, nil
	case "y", "1":
		return AxisY, nil
	case "z", "2":
		return AxisZ, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAxis, s)
}

// Valid reports whether a is one of AxisX, AxisY, AxisZ.
func (a Axis) Valid() bool {
	return a >= AxisX && a <= AxisZ
}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return fmt.Sprintf("axis(%d)", int(a))
}

// Component returns the coordinate of v along a.
func (a Axis) Component(v r3.Vec) float64 {
	switch a {
	case AxisY:
		return v.Y
	case AxisZ:
		return v.Z
	}
	return v.X
}

// Next returns the axis following a, used as the vertical axis of projected views.
func (a Axis) Next() Axis {
	return (a + 1) % 3
}

// Point is a vertex snapshot: a stable identifier and its coordinate
type Point struct {
	ID int
	Co r3.Vec
}

// Side classifies a point against the symmetry plane
type Side int

const (
	SideNone     Side = 0
	SideSelected Side = 1
	SideOpposite Side = -1
)

// CandidateEdge connects a selected point to a candidate within the threshold.
// Distance is measured between the candidate and the mirror image of the selected point.
type CandidateEdge struct {
	Selected  int
	Candidate int
	Distance  float64
}

// Pair is one matched (selected, candidate) correspondence
type Pair struct {
	Selected  int     `json:"selected"`
	Candidate int     `json:"candidate"`
	Distance  float64 `json:"distance"`
}

// Matching is a partial one-to-one assignment plus its total normalized cost
type Matching struct {
	Pairs []Pair
	Cost  float64
}

// Len returns the cardinality of the matching.
func (m Matching) Len() int {
	return len(m.Pairs)
}

// Result describes the changes a Mirror call wants applied.
// The caller applies Updated to its own store and re-selects UnmatchedSelected.
type Result struct {
	MovedCount        int
	Updated           map[int]r3.Vec
	UnmatchedSelected []int
	Pairs             []Pair
	Excluded          []int // selected ids not on the selected side
	Sign              float64
	Axis              Axis
}

// Request is the immutable input of one Mirror call
type Request struct {
	Points    []Point
	Selected  []int
	Axis      Axis
	Threshold float64
}

// Options tunes execution without changing results
type Options struct {
	Timeout time.Duration // 0 disables the deadline
	Workers int           // parallel radius queries; <= 0 means one per CPU
}

// Config represents the full configuration file
type Config struct {
	Mirror MirrorConfig `yaml:"mirror" json:"mirror"`
	MQTT   MQTTConfig   `yaml:"mqtt" json:"mqtt"`
	HTTP   HTTPConfig   `yaml:"http" json:"http"`
	Render RenderConfig `yaml:"render" json:"render"`
}

// MirrorConfig holds per-call defaults used when a snapshot leaves them out
type MirrorConfig struct {
	Axis      string        `yaml:"axis" json:"axis"`
	Threshold float64       `yaml:"threshold" json:"threshold"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	Workers   int           `yaml:"workers,omitempty" json:"workers,omitempty"`
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
	RequestTopic  string `yaml:"requestTopic" json:"requestTopic"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
}

// HTTPConfig holds HTTP server settings
type HTTPConfig struct {
	Port int `yaml:"port" json:"port"`
}

// RenderConfig holds defaults for the scene renderers (world units unless noted)
type RenderConfig struct {
	Padding     float64 `yaml:"padding" json:"padding"`
	PointRadius float64 `yaml:"pointRadius" json:"pointRadius"`
	Resolution  float64 `yaml:"resolution" json:"resolution"` // PNG DPI
}

// Options converts the mirror section into execution options.
func (c *Config) Options() Options {
	return Options{Timeout: c.Mirror.Timeout, Workers: c.Mirror.Workers}
}

// DefaultAxis returns the configured axis, falling back to x.
func (c *Config) DefaultAxis() Axis {
	a, err := ParseAxis(c.Mirror.Axis)
	if err != nil {
		return AxisX
	}
	return a
}
