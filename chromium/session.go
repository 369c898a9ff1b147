package chromium

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"

	"github.com/knowledgekitchen/pagecheck/api"
	"github.com/knowledgekitchen/pagecheck/browserprocess"
	"github.com/knowledgekitchen/pagecheck/cdp/domains"
	"github.com/knowledgekitchen/pagecheck/log"
)

// Ensure Session implements the api.Session interface.
var _ api.Session = &Session{}

// Session is a single tab in a browser launched by Driver.
type Session struct {
	// ctx is the chromedp context owning the tab and the browser.
	ctx     context.Context
	cancel  context.CancelFunc
	release context.CancelFunc
	// runCtx carries the run ID the browser pid was registered under.
	runCtx context.Context
	pid    int

	dom       domains.DOM
	emulation domains.Emulation
	input     domains.Input
	page      domains.Page

	closeOnce sync.Once
	closeErr  error

	logger *log.Logger
}

// Pid returns the browser process ID, or 0 for a remote browser.
func (s *Session) Pid() int {
	return s.pid
}

// bind returns a chromedp context for one call that is canceled when either
// the session or ctx is done. Canceling it never closes the tab.
func (s *Session) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	cctx, cancel := context.WithCancel(s.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return cctx, func() {
		stop()
		cancel()
	}
}

func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	cctx, cancel := s.bind(ctx)
	defer cancel()

	return chromedp.Run(cctx, actions...)
}

// Navigate loads url in the tab and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debugf("Session:Navigate", "url:%q", url)
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return errors.Wrapf(err, "navigating to %q", url)
	}

	return nil
}

// Title returns document.title.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, chromedp.Title(&title)); err != nil {
		return "", errors.Wrap(err, "reading page title")
	}

	return title, nil
}

func query(loc api.Locator) (string, chromedp.QueryOption, error) {
	switch loc.Kind {
	case api.ByCSS, api.ByTagName:
		return loc.Value, chromedp.ByQuery, nil
	case api.ByPartialLinkText:
		return api.PartialLinkTextXPath(loc.Value), chromedp.BySearch, nil
	case api.ByXPath:
		return loc.Value, chromedp.BySearch, nil
	default:
		return "", nil, errors.Errorf("unsupported locator %s", loc)
	}
}

// FindElement returns the first node matching loc without waiting for one to
// appear; the page is fully loaded by the time checks query it.
func (s *Session) FindElement(ctx context.Context, loc api.Locator) (api.Element, error) {
	sel, by, err := query(loc)
	if err != nil {
		return nil, err
	}

	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(sel, &nodes, by, chromedp.AtLeast(0))); err != nil {
		return nil, errors.Wrapf(err, "finding %s", loc)
	}
	s.logger.Debugf("Session:FindElement", "locator:%s matches:%d", loc, len(nodes))
	if len(nodes) == 0 {
		return nil, &api.ElementNotFoundError{Locator: loc}
	}

	return &element{s: s, node: nodes[0], loc: loc}, nil
}

// Hover moves the pointer over the center of el's content box.
func (s *Session) Hover(ctx context.Context, el api.Element) error {
	e, ok := el.(*element)
	if !ok || e.s != s {
		return errors.Errorf("element %s does not belong to this session", el.Locator())
	}

	cctx, cancel := s.bind(ctx)
	defer cancel()

	if err := s.dom.ScrollIntoViewIfNeeded(cctx, e.node.NodeID); err != nil {
		return errors.Wrap(err, "hovering")
	}
	box, err := s.dom.GetBoxModel(cctx, e.node.NodeID)
	if err != nil {
		return errors.Wrap(err, "hovering")
	}
	r := quadRect(box.Content)
	x, y := r.X+r.Width/2, r.Y+r.Height/2
	s.logger.Debugf("Session:Hover", "locator:%s x:%.1f y:%.1f", e.loc, x, y)

	return errors.Wrap(s.input.MouseMove(cctx, x, y), "hovering")
}

// SetViewport resizes the layout viewport.
func (s *Session) SetViewport(ctx context.Context, width, height int64) error {
	cctx, cancel := s.bind(ctx)
	defer cancel()

	s.logger.Debugf("Session:SetViewport", "%dx%d", width, height)
	return s.emulation.SetViewport(cctx, width, height)
}

// Screenshot captures the visible viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	cctx, cancel := s.bind(ctx)
	defer cancel()

	return s.page.CaptureScreenshot(cctx)
}

// Close closes the browser gracefully and then makes sure its process is
// gone. Only the first call does anything.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.logger.Debugf("Session:Close", "pid:%d", s.pid)
		err := chromedp.Cancel(s.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.closeErr = errors.Wrap(err, "closing browser")
		}
		s.cancel()
		s.release()
		if s.pid != 0 {
			browserprocess.Unregister(s.runCtx, s.logger, s.pid)
		}
	})

	return s.closeErr
}
