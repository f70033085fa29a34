package stream

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/royale-rl/types"
)

type fakeAdder struct {
	args []*redis.XAddArgs
	err  error
}

func (f *fakeAdder) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = append(f.args, a)
	return redis.NewStringResult("1-0", f.err)
}

func step() types.Step {
	return types.Step{
		Index:  3,
		Action: 7,
		Reward: 0.09,
		Next:   types.Observation{0.5, 0, 0.1, 0.5, 0.5},
		Info:   types.Info{Elixir: 5, HandSize: 4, ActionSuccess: true},
	}
}

func TestPublishFields(t *testing.T) {
	f := &fakeAdder{}
	p := NewPublisher(f, "royale:transitions", 1000, nil)

	id, err := p.Publish(context.Background(), 2, step())
	require.NoError(t, err)
	assert.Equal(t, "1-0", id)

	require.Len(t, f.args, 1)
	a := f.args[0]
	assert.Equal(t, "royale:transitions", a.Stream)
	assert.Equal(t, int64(1000), a.MaxLen)
	assert.True(t, a.Approx)

	values := a.Values.(map[string]interface{})
	assert.Equal(t, 2, values["episode"])
	assert.Equal(t, 3, values["step"])
	assert.Equal(t, 7, values["action"])
	assert.Equal(t, false, values["terminated"])

	var obs types.Observation
	require.NoError(t, json.Unmarshal([]byte(values["observation"].(string)), &obs))
	assert.Equal(t, 0.5, obs[0])

	var info types.Info
	require.NoError(t, json.Unmarshal([]byte(values["info"].(string)), &info))
	assert.Equal(t, 5, info.Elixir)
	assert.True(t, info.ActionSuccess)
}

func TestNoTrimWithoutMaxLen(t *testing.T) {
	f := &fakeAdder{}
	p := NewPublisher(f, "s", 0, nil)
	_, err := p.Publish(context.Background(), 0, step())
	require.NoError(t, err)
	assert.Zero(t, f.args[0].MaxLen)
	assert.False(t, f.args[0].Approx)
}

func TestObserverSwallowsErrors(t *testing.T) {
	f := &fakeAdder{err: errors.New("connection refused")}
	p := NewPublisher(f, "s", 10, nil)
	assert.NotPanics(t, func() {
		p.Observer()(0, step())
	})
	assert.Len(t, f.args, 1)
}
