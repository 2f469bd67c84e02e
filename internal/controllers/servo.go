package controllers

import (
	"errors"
	"fmt"

	"github.com/san-kum/rigidtree/internal/dynamo"
)

var ErrBadChannel = errors.New("controllers: invalid servo channel")

type Gains struct {
	Kp, Ki, Kd float64
}

// Channel drives one mobility toward Target. Q and U index the packed
// state; U also indexes the control vector. Only mobilities whose qdot is
// u make sense here.
type Channel struct {
	Q, U   int
	Target float64
	Gains

	integral float64
}

// JointServo is a set of independent PID loops, one per channel. The rate
// term uses the generalized speed directly instead of differencing.
type JointServo struct {
	nq, nu   int
	channels []Channel
	prevT    float64
	started  bool
}

func NewJointServo(nq, nu int) *JointServo {
	return &JointServo{nq: nq, nu: nu}
}

func (s *JointServo) AddChannel(q, u int, target float64, g Gains) error {
	if q < 0 || q >= s.nq || u < 0 || u >= s.nu {
		return fmt.Errorf("%w: q %d of %d, u %d of %d", ErrBadChannel, q, s.nq, u, s.nu)
	}
	if g.Kp < 0 || g.Ki < 0 || g.Kd < 0 {
		return fmt.Errorf("%w: negative gain %+v", ErrBadChannel, g)
	}
	s.channels = append(s.channels, Channel{Q: q, U: u, Target: target, Gains: g})
	return nil
}

func (s *JointServo) Channels() []Channel { return s.channels }

func (s *JointServo) Compute(x dynamo.State, t float64) dynamo.Control {
	c := make(dynamo.Control, s.nu)
	dt := 0.0
	if s.started {
		dt = t - s.prevT
	}
	s.prevT, s.started = t, true

	for i := range s.channels {
		ch := &s.channels[i]
		err := ch.Target - x[ch.Q]
		if dt > 0 {
			ch.integral += err * dt
		}
		c[ch.U] += ch.Kp*err + ch.Ki*ch.integral - ch.Kd*x[s.nq+ch.U]
	}
	return c
}

func (s *JointServo) Reset() {
	s.started = false
	for i := range s.channels {
		s.channels[i].integral = 0
	}
}
