package config

import (
	"fmt"
	"sort"
)

// ChainLinks is the length of the chain preset.
const ChainLinks = 5

func base(name string, bodies ...BodyConfig) *Config {
	c := DefaultConfig()
	c.Name = name
	c.Bodies = bodies
	return c
}

func link(name, parent string, y float64) BodyConfig {
	return BodyConfig{
		Name:    name,
		Parent:  parent,
		Joint:   "pin",
		Mass:    1,
		COM:     []float64{0, -1, 0},
		Inertia: []float64{0.01, 0.001, 0.01},
		Inboard: FrameConfig{Position: []float64{0, y, 0}},
	}
}

// Presets builds a fresh copy of each built-in model on every call.
var Presets = map[string]func() *Config{
	"pendulum": func() *Config {
		b := link("bob", "", 0)
		b.Q = []float64{0.5}
		return base("pendulum", b)
	},
	"double_pendulum": func() *Config {
		upper, lower := link("upper", "", 0), link("lower", "upper", -1)
		upper.Q, lower.Q = []float64{1.5}, []float64{1.5}
		c := base("double_pendulum", upper, lower)
		c.Dt = 0.002
		return c
	},
	"chain": func() *Config {
		c := base("chain")
		parent := ""
		for i := range ChainLinks {
			y := -1.0
			if i == 0 {
				y = 0
			}
			l := link(fmt.Sprintf("link%d", i+1), parent, y)
			l.Q = []float64{0.3}
			c.Bodies = append(c.Bodies, l)
			parent = l.Name
		}
		c.Dt = 0.002
		return c
	},
	"servo_arm": func() *Config {
		upper, lower := link("shoulder", "", 0), link("elbow", "shoulder", -1)
		c := base("servo_arm", upper, lower)
		c.Servos = []ServoConfig{
			{Body: "shoulder", Target: 1.2, Kp: 60, Ki: 5, Kd: 8},
			{Body: "elbow", Target: -0.6, Kp: 30, Ki: 2, Kd: 4},
		}
		return c
	},
	"reversed_pendulum": func() *Config {
		b := link("bob", "", 0)
		b.Reversed = true
		b.Q = []float64{-0.5}
		return base("reversed_pendulum", b)
	},
	"pin_slider_ball": func() *Config {
		c := base("pin_slider_ball",
			BodyConfig{
				Name: "arm", Joint: "pin", Mass: 2,
				COM: []float64{0.25, 0, 0}, Inertia: []float64{0.01, 0.05, 0.05},
				Q: []float64{0.7}, U: []float64{0.5},
			},
			BodyConfig{
				Name: "slide", Parent: "arm", Joint: "slider", Mass: 1,
				Inertia: []float64{0.005, 0.005, 0.005},
				Inboard: FrameConfig{Position: []float64{0.5, 0, 0}},
				Q:       []float64{0.2},
			},
			BodyConfig{
				Name: "bob", Parent: "slide", Joint: "ball", Mass: 1.5,
				COM: []float64{0, -0.4, 0}, Inertia: []float64{0.02, 0.01, 0.02},
				Inboard:     FrameConfig{Position: []float64{0, -0.2, 0}},
				Orientation: []float64{0.3, 0, 0.2},
				U:           []float64{1.2, -0.4, 0.8},
			},
		)
		c.Springs = []SpringConfig{{Body: "slide", Axis: 0, Stiffness: 30, Rest: 0.1}}
		return c
	},
	"gyroscope": func() *Config {
		c := base("gyroscope", BodyConfig{
			Name: "top", Joint: "ball", Mass: 1,
			COM: []float64{0, 0, 0.3}, Inertia: []float64{0.01, 0.01, 0.02},
			Orientation: []float64{-1.2, 0, 0},
			U:           []float64{0, 37.28, 14.49},
		})
		c.Dt = 0.001
		c.Duration = 5
		return c
	},
	"tumbling_box": func() *Config {
		c := base("tumbling_box", BodyConfig{
			Name: "box", Joint: "free", Mass: 1,
			Inertia: []float64{0.05 / 3, 0.1 / 3, 0.13 / 3},
			U:       []float64{0.05, 4, 0.05, 0, 0, 0},
		})
		c.Gravity.G = 0
		c.Duration = 20
		return c
	},
	"ellipsoid_roller": func() *Config {
		return base("ellipsoid_roller", BodyConfig{
			Name: "shell", Joint: "ellipsoid", Mass: 2,
			SemiAxes: []float64{0.5, 0.3, 0.2},
			COM:      []float64{0, 0, 0.1}, Inertia: []float64{0.06, 0.1, 0.14},
			Orientation: []float64{0.3, 0.2, 0},
		})
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	build, ok := Presets[name]
	if !ok {
		return nil
	}
	return build()
}

// ListPresets returns the preset names in sorted order.
func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
