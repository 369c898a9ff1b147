package domains

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdpp "github.com/chromedp/cdproto/page"
)

// Page exposes the CDP Page domain actions pagecheck uses.
type Page interface {
	CaptureScreenshot(ctx context.Context) ([]byte, error)
}

var _ Page = &page{}

type page struct {
	exec cdp.Executor
}

// NewPage returns a new CDP Page domain wrapper.
func NewPage(exec cdp.Executor) Page {
	return &page{exec}
}

// CaptureScreenshot captures the current viewport as PNG.
func (p *page) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	action := cdpp.CaptureScreenshot().WithFormat(cdpp.CaptureScreenshotFormatPng)
	buf, err := action.Do(cdp.WithExecutor(ctx, p.exec))
	if err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}

	return buf, nil
}
