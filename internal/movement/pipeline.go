package movement

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Stage identifies one of the six derivations.
type Stage int

const (
	StagePosition Stage = iota
	StageDistance
	StageBearing
	StageTurnAngle
	StageTurnVelocity
	StageVelocity
)

// AllStages lists every stage in dependency order.
var AllStages = []Stage{
	StagePosition,
	StageDistance,
	StageBearing,
	StageTurnAngle,
	StageTurnVelocity,
	StageVelocity,
}

type stageDef struct {
	name    string
	inputs  []string
	outputs []string
	fn      Transform
}

var stageDefs = map[Stage]stageDef{
	StagePosition:     {"position", []string{ColDX, ColDY}, []string{ColX, ColY}, Position},
	StageDistance:     {"distance", []string{ColDX, ColDY}, []string{ColDistance}, Distance},
	StageBearing:      {"bearing", []string{ColX, ColY}, []string{ColBearing}, Bearing},
	StageTurnAngle:    {"turn_angle", []string{ColBearing}, []string{ColTurnAngle}, TurnAngle},
	StageTurnVelocity: {"turn_velocity", []string{ColTurnAngle, ColDT}, []string{ColTurnVelocity}, TurnVelocity},
	StageVelocity:     {"velocity", []string{ColDX, ColDY, ColDT}, []string{ColVelocity}, Velocity},
}

func (s Stage) String() string {
	if d, ok := stageDefs[s]; ok {
		return d.name
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Inputs returns the columns the stage reads.
func (s Stage) Inputs() []string { return append([]string(nil), stageDefs[s].inputs...) }

// Outputs returns the columns the stage adds.
func (s Stage) Outputs() []string { return append([]string(nil), stageDefs[s].outputs...) }

// Apply runs the stage on one table.
func (s Stage) Apply(t *Table) (*Table, error) {
	d, ok := stageDefs[s]
	if !ok {
		return nil, fmt.Errorf("unknown stage %d", int(s))
	}
	return d.fn(t)
}

// ParseStage resolves a stage by name (case-insensitive).
func ParseStage(name string) (Stage, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, s := range AllStages {
		if stageDefs[s].name == n {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

// StageError reports a stage whose inputs are not available at its
// position in a pipeline.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Pipeline is an ordered list of stages run over every table of a
// collection. The column chain is checked before any stage executes.
type Pipeline struct {
	stages  []Stage
	workers int
}

// NewPipeline returns a pipeline running stages in the given order.
// With no stages it runs AllStages.
func NewPipeline(stages ...Stage) *Pipeline {
	if len(stages) == 0 {
		stages = AllStages
	}
	return &Pipeline{
		stages:  append([]Stage(nil), stages...),
		workers: 1,
	}
}

// WithWorkers sets how many tables may be processed concurrently.
// Values below 1 are treated as 1.
func (p *Pipeline) WithWorkers(n int) *Pipeline {
	if n < 1 {
		n = 1
	}
	p.workers = n
	return p
}

// Stages returns the configured stages.
func (p *Pipeline) Stages() []Stage { return append([]Stage(nil), p.stages...) }

// Validate checks that, starting from the given columns, every stage finds
// its inputs either in the starting set or among earlier stages' outputs.
func (p *Pipeline) Validate(columns []string) error {
	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[c] = true
	}
	for _, s := range p.stages {
		if _, ok := stageDefs[s]; !ok {
			return fmt.Errorf("unknown stage %d", int(s))
		}
		for _, in := range stageDefs[s].inputs {
			if !have[in] {
				return &StageError{Stage: s, Err: &MissingColumnError{Column: in}}
			}
		}
		for _, out := range stageDefs[s].outputs {
			have[out] = true
		}
	}
	return nil
}

// Apply validates t against the pipeline and runs every stage on it.
func (p *Pipeline) Apply(t *Table) (*Table, error) {
	if err := p.Validate(t.Columns()); err != nil {
		return nil, err
	}
	var err error
	for _, s := range p.stages {
		if t, err = s.Apply(t); err != nil {
			return nil, &StageError{Stage: s, Err: err}
		}
	}
	return t, nil
}

// Run applies the pipeline to every table in c and returns a collection
// of the same length and order. Tables are independent, so up to the
// configured worker count are processed at once.
func (p *Pipeline) Run(ctx context.Context, c Collection) (Collection, error) {
	out := make(Collection, len(c))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, e := range c {
		if !e.IsTable() {
			out[i] = e
			continue
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := p.Apply(e.Table)
			if err != nil {
				return tableError(i, e.Table, err)
			}
			out[i] = TableEntry(t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
