package stage

import "fmt"

// Stage is a validity level. Stages are totally ordered; a quantity
// computed at stage S may be trusted only while the owning state is
// realized to at least S.
type Stage int

const (
	Empty Stage = iota
	Topology
	Model
	Instance
	Time
	Position
	Velocity
	Dynamics
	Acceleration
	Report
)

// NumStages counts Empty through Report.
const NumStages = int(Report) + 1

var stageNames = [NumStages]string{
	"Empty", "Topology", "Model", "Instance", "Time",
	"Position", "Velocity", "Dynamics", "Acceleration", "Report",
}

func (s Stage) String() string {
	if s < Empty || s > Report {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

func (s Stage) Valid() bool { return s >= Empty && s <= Report }

func (s Stage) Next() Stage {
	if s >= Report {
		return Report
	}
	return s + 1
}

func (s Stage) Prev() Stage {
	if s <= Empty {
		return Empty
	}
	return s - 1
}

// Parse maps a stage name back to its value.
func Parse(name string) (Stage, error) {
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return Empty, fmt.Errorf("stage: unknown stage %q", name)
}
