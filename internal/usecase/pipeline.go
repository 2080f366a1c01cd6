package usecase

import (
	"context"
	"fmt"
	"time"

	"CryptoCast/internal/domain/models"
	"CryptoCast/internal/domain/repository"
	"CryptoCast/pkg/logger"
)

// slotRef is the untyped view of a Slot the runner works with.
type slotRef interface {
	slotName() string
	load(ctx context.Context, st *State) error
}

// Slot is a typed edge of the task graph. Load restores the value from
// persisted artifacts when no node of the running pipeline produces it.
type Slot[T any] struct {
	Name string
	Load func(ctx context.Context) (T, error)
}

func (s Slot[T]) slotName() string { return s.Name }

func (s Slot[T]) load(ctx context.Context, st *State) error {
	if s.Load == nil {
		return fmt.Errorf("%w: %s is not produced by this pipeline", models.ErrArtifactMissing, s.Name)
	}
	v, err := s.Load(ctx)
	if err != nil {
		return fmt.Errorf("load %s: %w", s.Name, err)
	}
	st.values[s.Name] = v
	return nil
}

// State holds the slot values of one run.
type State struct {
	values map[string]any
}

func newState() *State { return &State{values: make(map[string]any)} }

// Put stores the value of s.
func Put[T any](st *State, s Slot[T], v T) { st.values[s.Name] = v }

// Get returns the value of s, or the zero value when absent.
func Get[T any](st *State, s Slot[T]) T {
	v, _ := st.values[s.Name].(T)
	return v
}

// Lookup returns the value of s and whether the run holds one.
func Lookup[T any](st *State, s Slot[T]) (T, bool) {
	v, ok := st.values[s.Name].(T)
	return v, ok
}

// Node is one step of a pipeline.
type Node struct {
	Name    string
	Inputs  []slotRef
	Outputs []slotRef
	Run     func(ctx context.Context, st *State) error
}

// In and Out build the slot lists of a node.
func In(slots ...slotRef) []slotRef  { return slots }
func Out(slots ...slotRef) []slotRef { return slots }

// Pipeline is a named set of nodes in dependency order.
type Pipeline struct {
	Name  string
	nodes []Node
}

// NewPipeline orders nodes so every node runs after the producers of its
// inputs. Declaration order breaks ties. Two producers of one slot or a
// cycle are errors.
func NewPipeline(name string, nodes ...Node) (*Pipeline, error) {
	producer := make(map[string]int)
	for i, n := range nodes {
		for _, out := range n.Outputs {
			if j, dup := producer[out.slotName()]; dup {
				return nil, fmt.Errorf("pipeline %s: slot %s produced by both %s and %s", name, out.slotName(), nodes[j].Name, n.Name)
			}
			producer[out.slotName()] = i
		}
	}

	indeg := make([]int, len(nodes))
	next := make([][]int, len(nodes))
	for i, n := range nodes {
		for _, in := range n.Inputs {
			if j, ok := producer[in.slotName()]; ok {
				if j == i {
					return nil, fmt.Errorf("pipeline %s: node %s consumes its own output %s", name, n.Name, in.slotName())
				}
				next[j] = append(next[j], i)
				indeg[i]++
			}
		}
	}

	ordered := make([]Node, 0, len(nodes))
	done := make([]bool, len(nodes))
	for len(ordered) < len(nodes) {
		progressed := false
		for i := range nodes {
			if done[i] || indeg[i] > 0 {
				continue
			}
			done[i] = true
			ordered = append(ordered, nodes[i])
			for _, k := range next[i] {
				indeg[k]--
			}
			progressed = true
			break
		}
		if !progressed {
			return nil, fmt.Errorf("pipeline %s: dependency cycle", name)
		}
	}
	return &Pipeline{Name: name, nodes: ordered}, nil
}

// NodeNames lists the nodes in execution order.
func (p *Pipeline) NodeNames() []string {
	out := make([]string, len(p.nodes))
	for i, n := range p.nodes {
		out[i] = n.Name
	}
	return out
}

// Run executes the nodes in order. Inputs nobody in this pipeline produces
// are loaded just before the first node that needs them.
func (p *Pipeline) Run(ctx context.Context, metrics repository.Metrics, lgr *logger.Logger) (*State, error) {
	st := newState()
	for _, n := range p.nodes {
		for _, in := range n.Inputs {
			if _, ok := st.values[in.slotName()]; ok {
				continue
			}
			if err := in.load(ctx, st); err != nil {
				return st, fmt.Errorf("node %s: %w", n.Name, err)
			}
		}
		if err := ctx.Err(); err != nil {
			return st, fmt.Errorf("node %s: %w", n.Name, err)
		}

		lgr.Info("node started", logger.String("pipeline", p.Name), logger.String("node", n.Name))
		start := time.Now()
		err := n.Run(ctx, st)
		took := time.Since(start)
		metrics.RecordNodeDuration(n.Name, took.Seconds())
		if err != nil {
			lgr.Error("node failed",
				logger.String("pipeline", p.Name),
				logger.String("node", n.Name),
				logger.Duration("took", took),
				logger.Error(err))
			return st, fmt.Errorf("node %s: %w", n.Name, err)
		}
		for _, out := range n.Outputs {
			if _, ok := st.values[out.slotName()]; !ok {
				return st, fmt.Errorf("node %s did not produce %s", n.Name, out.slotName())
			}
		}
		lgr.Info("node finished", logger.String("pipeline", p.Name), logger.String("node", n.Name), logger.Duration("took", took))
	}
	return st, nil
}
