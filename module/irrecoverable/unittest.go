package irrecoverable

import (
	"context"
	"runtime"
	"testing"
)

// MockSignalerContext fails the test when an error is thrown.
type MockSignalerContext struct {
	context.Context
	t *testing.T
}

var _ SignalerContext = (*MockSignalerContext)(nil)

func (*MockSignalerContext) sealed() {}

func (m *MockSignalerContext) Throw(err error) {
	m.t.Errorf("unexpected irrecoverable error: %v", err)
	runtime.Goexit()
}

func NewMockSignalerContext(t *testing.T, ctx context.Context) *MockSignalerContext {
	return &MockSignalerContext{Context: ctx, t: t}
}

// NewMockSignalerContextWithCancel is NewMockSignalerContext on a cancellable child of parent.
func NewMockSignalerContextWithCancel(t *testing.T, parent context.Context) (*MockSignalerContext, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	return NewMockSignalerContext(t, ctx), cancel
}
