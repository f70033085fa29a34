package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/zeu5/royale-rl/logger"
	"github.com/zeu5/royale-rl/types"
)

// Adder is the part of the redis client the publisher needs.
type Adder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Publisher appends every transition to a redis stream so that an
// external trainer can consume them.
type Publisher struct {
	client  Adder
	stream  string
	maxLen  int64
	timeout time.Duration
	log     *logrus.Entry
}

func NewPublisher(client Adder, stream string, maxLen int64, log *logrus.Entry) *Publisher {
	if log == nil {
		log = logger.Discard()
	}
	return &Publisher{
		client:  client,
		stream:  stream,
		maxLen:  maxLen,
		timeout: 2 * time.Second,
		log:     log,
	}
}

// Dial connects to addr and checks the server answers.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	cli := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		cli.Close()
		return nil, err
	}
	return cli, nil
}

func (p *Publisher) values(episode int, step types.Step) (map[string]interface{}, error) {
	obs, err := json.Marshal(step.Next)
	if err != nil {
		return nil, err
	}
	info, err := json.Marshal(step.Info)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"episode":     episode,
		"step":        step.Index,
		"action":      step.Action,
		"reward":      step.Reward,
		"terminated":  step.Terminated,
		"truncated":   step.Truncated,
		"observation": string(obs),
		"info":        string(info),
	}, nil
}

// Publish appends one transition and returns the entry ID.
func (p *Publisher) Publish(ctx context.Context, episode int, step types.Step) (string, error) {
	values, err := p.values(episode, step)
	if err != nil {
		return "", err
	}
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	return p.client.XAdd(ctx, args).Result()
}

// Observer adapts the publisher to the agent's step hook. Failures are
// logged and never interrupt the episode.
func (p *Publisher) Observer() types.StepObserver {
	return func(episode int, step types.Step) {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if _, err := p.Publish(ctx, episode, step); err != nil {
			p.log.WithError(err).WithFields(logrus.Fields{
				"episode": episode,
				"step":    step.Index,
			}).Warn("could not publish transition")
		}
	}
}
