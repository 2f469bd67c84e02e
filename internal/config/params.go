package config

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

var ErrUnknownParam = errors.New("config: unknown parameter")

// Clone copies c deeply enough that SetParam on the copy never touches c.
func (c *Config) Clone() *Config {
	d := *c
	d.Gravity.Down = slices.Clone(c.Gravity.Down)
	d.Gravity.Exclude = slices.Clone(c.Gravity.Exclude)
	d.Bodies = make([]BodyConfig, len(c.Bodies))
	for i, b := range c.Bodies {
		b.SemiAxes = slices.Clone(b.SemiAxes)
		b.COM = slices.Clone(b.COM)
		b.Inertia = slices.Clone(b.Inertia)
		b.Q = slices.Clone(b.Q)
		b.U = slices.Clone(b.U)
		b.Orientation = slices.Clone(b.Orientation)
		d.Bodies[i] = b
	}
	d.Springs = slices.Clone(c.Springs)
	d.Dampers = slices.Clone(c.Dampers)
	d.Servos = slices.Clone(c.Servos)
	d.Efforts = slices.Clone(c.Efforts)
	d.Torques = slices.Clone(c.Torques)
	for i := range d.Torques {
		d.Torques[i].Torque = slices.Clone(d.Torques[i].Torque)
	}
	d.Loads = slices.Clone(c.Loads)
	for i := range d.Loads {
		d.Loads[i].Station = slices.Clone(d.Loads[i].Station)
		d.Loads[i].Force = slices.Clone(d.Loads[i].Force)
	}
	return &d
}

// SetParam sets one numeric setting by name:
//
//	dt, duration, tolerance, g, zero_height
//	<body>.mass, <body>.q<i>, <body>.u<i>
//	servo<i>.kp, servo<i>.ki, servo<i>.kd, servo<i>.target
//	spring<i>.stiffness, spring<i>.rest, damper<i>.damping, effort<i>.value
//
// Setting one entry of a body's q or u fills the rest with the joint's
// defaults. Values are checked when the model is built.
func (c *Config) SetParam(name string, v float64) error {
	switch name {
	case "dt":
		c.Dt = v
		return nil
	case "duration":
		c.Duration = v
		return nil
	case "tolerance":
		c.Tolerance = v
		return nil
	case "g":
		c.Gravity.G = v
		return nil
	case "zero_height":
		c.Gravity.ZeroHeight = v
		return nil
	}

	owner, field, ok := strings.Cut(name, ".")
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParam, name)
	}
	if handled, err := c.setIndexed(owner, field, v); handled {
		return err
	}
	for i := range c.Bodies {
		if c.Bodies[i].Name == owner {
			return c.setBody(&c.Bodies[i], field, v)
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownParam, name)
}

// setIndexed handles servo<i>, spring<i>, damper<i> and effort<i> owners.
func (c *Config) setIndexed(owner, field string, v float64) (bool, error) {
	var fields map[string]*float64
	switch kind, n, ok := splitIndex(owner); {
	case !ok:
		return false, nil
	case kind == "servo" && n < len(c.Servos):
		s := &c.Servos[n]
		fields = map[string]*float64{"kp": &s.Kp, "ki": &s.Ki, "kd": &s.Kd, "target": &s.Target}
	case kind == "spring" && n < len(c.Springs):
		s := &c.Springs[n]
		fields = map[string]*float64{"stiffness": &s.Stiffness, "rest": &s.Rest}
	case kind == "damper" && n < len(c.Dampers):
		fields = map[string]*float64{"damping": &c.Dampers[n].Damping}
	case kind == "effort" && n < len(c.Efforts):
		fields = map[string]*float64{"value": &c.Efforts[n].Value}
	default:
		return true, fmt.Errorf("%w: no %s", ErrUnknownParam, owner)
	}
	p, ok := fields[field]
	if !ok {
		return true, fmt.Errorf("%w: %s.%s", ErrUnknownParam, owner, field)
	}
	*p = v
	return true, nil
}

// splitIndex splits "servo2" into ("servo", 2). Body names that merely look
// like that are not split: only servo, spring and damper qualify.
func splitIndex(owner string) (string, int, bool) {
	for _, kind := range []string{"servo", "spring", "damper", "effort"} {
		rest, ok := strings.CutPrefix(owner, kind)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 {
			return "", 0, false
		}
		return kind, n, true
	}
	return "", 0, false
}

func (c *Config) setBody(b *BodyConfig, field string, v float64) error {
	if field == "mass" {
		b.Mass = v
		return nil
	}
	var coords *[]float64
	var n int
	mob, err := b.mobilizer(c.EulerAngles)
	if err != nil {
		return err
	}
	switch {
	case strings.HasPrefix(field, "q"):
		coords, n = &b.Q, mob.NQ()
	case strings.HasPrefix(field, "u"):
		coords, n = &b.U, mob.NU()
	default:
		return fmt.Errorf("%w: %s.%s", ErrUnknownParam, b.Name, field)
	}
	i, err := strconv.Atoi(field[1:])
	if err != nil || i < 0 || i >= n {
		return fmt.Errorf("%w: %s.%s (joint has %d)", ErrUnknownParam, b.Name, field, n)
	}
	if len(*coords) != n {
		*coords = make([]float64, n)
		if field[0] == 'q' {
			mob.DefaultQ(*coords)
		}
	}
	(*coords)[i] = v
	return nil
}
