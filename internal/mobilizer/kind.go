package mobilizer

import (
	"fmt"
	"strings"
)

// Kind selects one entry of the fixed joint catalog.
type Kind int

const (
	Ground Kind = iota
	Weld
	Translate
	Slider
	Pin
	Screw
	Cylinder
	BendStretch
	Universal
	Planar
	Gimbal
	Ball
	Ellipsoid
	Free
	LineOrientation
	FreeLine
	Custom
)

var kindNames = [...]string{
	Ground:          "ground",
	Weld:            "weld",
	Translate:       "translate",
	Slider:          "slider",
	Pin:             "pin",
	Screw:           "screw",
	Cylinder:        "cylinder",
	BendStretch:     "bend_stretch",
	Universal:       "universal",
	Planar:          "planar",
	Gimbal:          "gimbal",
	Ball:            "ball",
	Ellipsoid:       "ellipsoid",
	Free:            "free",
	LineOrientation: "line_orientation",
	FreeLine:        "free_line",
	Custom:          "custom",
}

var kindAliases = map[string]Kind{
	"torsion":     Pin,
	"cartesian":   Translate,
	"orientation": Ball,
}

func (k Kind) String() string {
	if k < Ground || k > Custom {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind accepts catalog names and the common aliases (torsion,
// cartesian, orientation), case-insensitively.
func ParseKind(name string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for k, kn := range kindNames {
		if kn == n {
			return Kind(k), nil
		}
	}
	if k, ok := kindAliases[n]; ok {
		return k, nil
	}
	return Ground, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Kinds lists the catalog in declaration order.
func Kinds() []Kind {
	ks := make([]Kind, 0, len(kindNames))
	for k := range kindNames {
		ks = append(ks, Kind(k))
	}
	return ks
}

// dofs is the fixed number of generalized speeds per kind (Custom varies).
var dofs = [...]int{
	Ground: 0, Weld: 0, Translate: 3, Slider: 1, Pin: 1, Screw: 1,
	Cylinder: 2, BendStretch: 2, Universal: 2, Planar: 3, Gimbal: 3,
	Ball: 3, Ellipsoid: 3, Free: 6, LineOrientation: 2, FreeLine: 5,
}

// hasOrientation reports kinds whose rotation may be held as a quaternion
// or as body-fixed XYZ Euler angles.
func (k Kind) hasOrientation() bool {
	switch k {
	case Ball, Ellipsoid, Free, LineOrientation, FreeLine:
		return true
	}
	return false
}
