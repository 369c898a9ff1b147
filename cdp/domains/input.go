package domains

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdpi "github.com/chromedp/cdproto/input"
)

// Input exposes the CDP Input domain actions pagecheck uses.
type Input interface {
	MouseMove(ctx context.Context, x, y float64) error
}

var _ Input = &input{}

type input struct {
	exec cdp.Executor
}

// NewInput returns a new CDP Input domain wrapper.
func NewInput(exec cdp.Executor) Input {
	return &input{exec}
}

// MouseMove moves the pointer to x, y in viewport coordinates, which is what
// triggers :hover rules.
func (i *input) MouseMove(ctx context.Context, x, y float64) error {
	action := cdpi.DispatchMouseEvent(cdpi.MouseMoved, x, y)
	if err := action.Do(cdp.WithExecutor(ctx, i.exec)); err != nil {
		return fmt.Errorf("moving mouse to (%.1f, %.1f): %w", x, y, err)
	}

	return nil
}
