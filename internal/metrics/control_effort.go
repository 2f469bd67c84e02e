package metrics

import (
	"github.com/san-kum/rigidtree/internal/dynamo"
)

// ControlEffort integrates the squared norm of the mobility actuation over
// time with the rectangle rule.
type ControlEffort struct {
	sum     float64
	lastT   float64
	samples int
}

func NewControlEffort() *ControlEffort { return &ControlEffort{} }

func (c *ControlEffort) Name() string { return "control_effort" }

func (c *ControlEffort) Observe(_ dynamo.State, u dynamo.Control, t float64) {
	if c.samples > 0 {
		sq := 0.0
		for _, v := range u {
			sq += v * v
		}
		c.sum += sq * (t - c.lastT)
	}
	c.lastT = t
	c.samples++
}

func (c *ControlEffort) Value() float64 { return c.sum }

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.lastT = 0
	c.samples = 0
}
