package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type runPayload struct {
	RunID        string `json:"run_id"`
	PipelineName string `json:"pipeline_name"`
}

func TestNewMessageAndParsePayload(t *testing.T) {
	msg, err := NewMessage("pipeline.run", runPayload{RunID: "r1", PipelineName: "__default__"})
	require.NoError(t, err)
	require.NotEmpty(t, msg.ID)
	require.Equal(t, "pipeline.run", msg.Type)

	b, err := json.Marshal(msg)
	require.NoError(t, err)
	var decoded Message
	require.NoError(t, json.Unmarshal(b, &decoded))

	p, err := ParsePayload[runPayload](decoded.Payload)
	require.NoError(t, err)
	require.Equal(t, "__default__", p.PipelineName)
}

func TestParsePayloadRejectsEmpty(t *testing.T) {
	_, err := ParsePayload[runPayload](nil)
	require.Error(t, err)
}

func TestDispatchRoutesByType(t *testing.T) {
	q := NewRedisQueue(nil, nil, nil, ModeProducerConsumer)
	var got string
	q.RegisterJob(JobFunc{JobName: "pipeline-runner", MsgType: "pipeline.run", Fn: func(_ context.Context, payload json.RawMessage) error {
		p, err := ParsePayload[runPayload](payload)
		if err != nil {
			return err
		}
		got = p.RunID
		return nil
	}})

	msg, err := NewMessage("pipeline.run", runPayload{RunID: "abc"})
	require.NoError(t, err)
	require.NoError(t, q.dispatch(msg))
	require.Equal(t, "abc", got)

	msg.Type = "unknown"
	require.ErrorIs(t, q.dispatch(msg), errNoJob)
}

func TestEnqueueRequiresRunningQueue(t *testing.T) {
	q := NewRedisQueue(nil, nil, nil, ModeProducerOnly)
	require.Error(t, q.Enqueue(context.Background(), "pipeline.run", runPayload{}))
}
