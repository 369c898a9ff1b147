package domains

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdpe "github.com/chromedp/cdproto/emulation"
)

// Emulation exposes the CDP Emulation domain actions pagecheck uses.
type Emulation interface {
	SetViewport(ctx context.Context, width, height int64) error
}

var _ Emulation = &emulation{}

type emulation struct {
	exec cdp.Executor
}

// NewEmulation returns a new CDP Emulation domain wrapper.
func NewEmulation(exec cdp.Executor) Emulation {
	return &emulation{exec}
}

// SetViewport overrides the layout viewport with a desktop (non-mobile)
// device of the given size and a scale factor of 1.
func (e *emulation) SetViewport(ctx context.Context, width, height int64) error {
	action := cdpe.SetDeviceMetricsOverride(width, height, 1, false)
	if err := action.Do(cdp.WithExecutor(ctx, e.exec)); err != nil {
		return fmt.Errorf("setting viewport to %dx%d: %w", width, height, err)
	}

	return nil
}
