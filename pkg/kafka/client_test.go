package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"parallax-gateway/internal/config"
	"parallax-gateway/pkg/tasks"
)

type flakyProcessor struct {
	failures int
	calls    int
}

func (p *flakyProcessor) Apply(context.Context, tasks.UsageEvent) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("db down")
	}
	return nil
}

func TestApplyWithRetry_RecoversAfterFailure(t *testing.T) {
	p := &flakyProcessor{failures: 1}
	err := applyWithRetry(context.Background(), p, tasks.UsageEvent{EventID: "e1"})
	assert.NoError(t, err)
	assert.Equal(t, 2, p.calls)
}

func TestApplyWithRetry_StopsOnCancel(t *testing.T) {
	p := &flakyProcessor{failures: 10}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := applyWithRetry(ctx, p, tasks.UsageEvent{EventID: "e1"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, p.calls)
}

func TestBrokers(t *testing.T) {
	got := brokers(config.KafkaConfig{Brokers: " k1:9092, ,k2:9092"})
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, got)
}
