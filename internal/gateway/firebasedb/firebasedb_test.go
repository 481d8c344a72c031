package firebasedb

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"tutorme.app/marketplace/internal/gateway"
)

func TestIsNull(t *testing.T) {
	assert.True(t, isNull(nil))
	assert.True(t, isNull(json.RawMessage("null")))
	assert.True(t, isNull(json.RawMessage("  null\n")))
	assert.False(t, isNull(json.RawMessage(`{"a":1}`)))
}

func TestWrap(t *testing.T) {
	assert.True(t, errors.Is(wrap(errors.New("dial tcp: timeout")), gateway.ErrUnavailable))
	assert.True(t, errors.Is(wrap(context.Canceled), context.Canceled))
	assert.False(t, errors.Is(wrap(context.Canceled), gateway.ErrUnavailable))
}
