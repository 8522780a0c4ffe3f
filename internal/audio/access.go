package audio

import (
	"context"
	"fmt"
)

type checkedBackend struct {
	Backend
	check func() error
}

// WithAccessCheck runs check before every Open so a revoked permission
// surfaces as a failed acquisition.
func WithAccessCheck(b Backend, check func() error) Backend {
	if check == nil {
		return b
	}
	return &checkedBackend{Backend: b, check: check}
}

func (c *checkedBackend) Open(ctx context.Context, deviceID string, cfg StreamConfig, cb DataCallback) (Stream, error) {
	if err := c.check(); err != nil {
		return nil, fmt.Errorf("microphone access: %w", err)
	}
	return c.Backend.Open(ctx, deviceID, cfg, cb)
}
