package usecase

import (
	"context"
	"errors"
	"testing"

	"CryptoCast/internal/domain/models"
	"CryptoCast/pkg/logger"
	"CryptoCast/pkg/metrics"

	"github.com/stretchr/testify/require"
)

func TestNewPipelineOrdersByDependencies(t *testing.T) {
	a := Slot[int]{Name: "a"}
	b := Slot[int]{Name: "b"}
	var order []string

	double := Node{Name: "double", Inputs: In(a), Outputs: Out(b), Run: func(_ context.Context, st *State) error {
		order = append(order, "double")
		Put(st, b, Get(st, a)*2)
		return nil
	}}
	seed := Node{Name: "seed", Outputs: Out(a), Run: func(_ context.Context, st *State) error {
		order = append(order, "seed")
		Put(st, a, 21)
		return nil
	}}

	p, err := NewPipeline("test", double, seed)
	require.NoError(t, err)
	require.Equal(t, []string{"seed", "double"}, p.NodeNames())

	st, err := p.Run(context.Background(), metrics.Noop{}, logger.Nop())
	require.NoError(t, err)
	require.Equal(t, []string{"seed", "double"}, order)
	require.Equal(t, 42, Get(st, b))
}

func TestNewPipelineRejectsCycles(t *testing.T) {
	a := Slot[int]{Name: "a"}
	b := Slot[int]{Name: "b"}
	noop := func(context.Context, *State) error { return nil }

	_, err := NewPipeline("cyclic",
		Node{Name: "x", Inputs: In(a), Outputs: Out(b), Run: noop},
		Node{Name: "y", Inputs: In(b), Outputs: Out(a), Run: noop},
	)
	require.ErrorContains(t, err, "cycle")
}

func TestNewPipelineRejectsDuplicateProducers(t *testing.T) {
	a := Slot[int]{Name: "a"}
	noop := func(context.Context, *State) error { return nil }

	_, err := NewPipeline("dup",
		Node{Name: "x", Outputs: Out(a), Run: noop},
		Node{Name: "y", Outputs: Out(a), Run: noop},
	)
	require.ErrorContains(t, err, "produced by both x and y")
}

func TestRunLoadsInputsProducedElsewhere(t *testing.T) {
	loads := 0
	a := Slot[string]{Name: "a", Load: func(context.Context) (string, error) {
		loads++
		return "persisted", nil
	}}
	b := Slot[string]{Name: "b"}

	p, err := NewPipeline("subset", Node{Name: "use", Inputs: In(a), Outputs: Out(b), Run: func(_ context.Context, st *State) error {
		Put(st, b, Get(st, a)+"!")
		return nil
	}})
	require.NoError(t, err)

	st, err := p.Run(context.Background(), metrics.Noop{}, logger.Nop())
	require.NoError(t, err)
	require.Equal(t, 1, loads)
	require.Equal(t, "persisted!", Get(st, b))
}

func TestRunFailsWhenInputHasNoSource(t *testing.T) {
	a := Slot[int]{Name: "a"}
	p, err := NewPipeline("orphan", Node{Name: "use", Inputs: In(a), Run: func(context.Context, *State) error { return nil }})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), metrics.Noop{}, logger.Nop())
	require.ErrorIs(t, err, models.ErrArtifactMissing)
	require.ErrorContains(t, err, "node use")
}

func TestRunStopsAtFirstFailingNode(t *testing.T) {
	a := Slot[int]{Name: "a"}
	boom := errors.New("boom")
	ran := false

	p, err := NewPipeline("failing",
		Node{Name: "first", Outputs: Out(a), Run: func(context.Context, *State) error { return boom }},
		Node{Name: "second", Inputs: In(a), Run: func(context.Context, *State) error { ran = true; return nil }},
	)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), metrics.Noop{}, logger.Nop())
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "node first")
	require.False(t, ran)
}

func TestRunRequiresDeclaredOutputs(t *testing.T) {
	a := Slot[int]{Name: "a"}
	p, err := NewPipeline("lazy", Node{Name: "forgetful", Outputs: Out(a), Run: func(context.Context, *State) error { return nil }})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), metrics.Noop{}, logger.Nop())
	require.ErrorContains(t, err, "did not produce a")
}
