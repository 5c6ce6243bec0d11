package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNewPublisher_NilConnection(t *testing.T) {
	p, err := NewPublisher(nil, "threatlens", "threat_model_assignments", zap.NewNop())
	assert.Error(t, err)
	assert.Nil(t, p)
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.PublishJSON(context.Background(), map[string]string{"type": "threat_model.assigned"}))
}
