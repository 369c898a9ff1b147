package domains

import (
	"context"
	"fmt"

	cdpb "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
)

// Version is the browser build the session is connected to.
type Version struct {
	ProtocolVersion string
	Product         string
	Revision        string
	UserAgent       string
	JSVersion       string
}

// Browser exposes the CDP Browser domain actions pagecheck uses.
type Browser interface {
	GetVersion(ctx context.Context) (*Version, error)
}

var _ Browser = &browser{}

type browser struct {
	exec cdp.Executor
}

// NewBrowser returns a new CDP Browser domain wrapper.
func NewBrowser(exec cdp.Executor) Browser {
	return &browser{exec}
}

func (b *browser) GetVersion(ctx context.Context) (*Version, error) {
	action := cdpb.GetVersion()
	protocolVersion, product, revision, userAgent, jsVersion, err := action.Do(cdp.WithExecutor(ctx, b.exec))
	if err != nil {
		return nil, fmt.Errorf("getting browser version: %w", err)
	}

	return &Version{
		ProtocolVersion: protocolVersion,
		Product:         product,
		Revision:        revision,
		UserAgent:       userAgent,
		JSVersion:       jsVersion,
	}, nil
}
