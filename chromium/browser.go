// Package chromium is responsible for launching a Chrome browser process,
// driving it over CDP and managing its lifetime.
package chromium

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"

	"github.com/knowledgekitchen/pagecheck/api"
	"github.com/knowledgekitchen/pagecheck/browserprocess"
	"github.com/knowledgekitchen/pagecheck/cdp/domains"
	"github.com/knowledgekitchen/pagecheck/log"
)

// Ensure Driver implements the api.Driver interface.
var _ api.Driver = &Driver{}

// LaunchOptions controls how the browser process is started.
type LaunchOptions struct {
	Headless       bool
	ExecutablePath string
	// Args are extra command line switches, either "name" or "name=value".
	Args          []string
	WindowWidth   int
	WindowHeight  int
	LaunchTimeout time.Duration
}

// DefaultLaunchOptions returns headless launch options with a 1280x800 window.
func DefaultLaunchOptions() *LaunchOptions {
	return &LaunchOptions{
		Headless:      true,
		WindowWidth:   1280,
		WindowHeight:  800,
		LaunchTimeout: 30 * time.Second,
	}
}

func (o *LaunchOptions) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.WindowSize(o.WindowWidth, o.WindowHeight),
	)
	if o.ExecutablePath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecutablePath))
	}
	for _, arg := range o.Args {
		arg = strings.TrimLeft(arg, "-")
		if name, value, ok := strings.Cut(arg, "="); ok {
			opts = append(opts, chromedp.Flag(name, value))
			continue
		}
		opts = append(opts, chromedp.Flag(arg, true))
	}

	return opts
}

// Driver launches one local Chrome process per session.
type Driver struct {
	opts   *LaunchOptions
	logger *log.Logger
}

// NewDriver returns a Driver. A nil opts means DefaultLaunchOptions and a
// nil logger discards everything.
func NewDriver(opts *LaunchOptions, logger *log.Logger) *Driver {
	if opts == nil {
		opts = DefaultLaunchOptions()
	}
	if logger == nil {
		logger = log.NewNullLogger()
	}
	return &Driver{opts: opts, logger: logger}
}

// OpenSession launches a browser and opens a blank tab in it.
//
// The browser's lifetime is bound to the returned Session, not to ctx: ctx
// only bounds how long the launch may take.
func (d *Driver) OpenSession(ctx context.Context) (api.Session, error) {
	if _, ok := ctx.Deadline(); !ok && d.opts.LaunchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.LaunchTimeout)
		defer cancel()
	}

	base := context.WithoutCancel(ctx)
	allocCtx, allocCancel := chromedp.NewExecAllocator(base, d.opts.allocatorOptions()...)
	ctxOpts := []chromedp.ContextOption{
		chromedp.WithLogf(func(format string, args ...any) {
			d.logger.Debugf("chromedp", format, args...)
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			d.logger.Errorf("chromedp", format, args...)
		}),
	}
	if d.logger.DebugMode() {
		// Logs every CDP message.
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(func(format string, args ...any) {
			d.logger.Tracef("chromedp:cdp", format, args...)
		}))
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, ctxOpts...)
	release := func() {
		browserCancel()
		allocCancel()
	}

	d.logger.Debugf("Driver:OpenSession", "launching browser headless:%t path:%q", d.opts.Headless, d.opts.ExecutablePath)

	// The first Run allocates the browser and binds it to browserCtx, so it
	// must not be given a context that expires. Wait for it here instead.
	errc := make(chan error, 1)
	go func() { errc <- chromedp.Run(browserCtx) }()
	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		release()
		return nil, errors.Wrap(err, "launching browser")
	}

	c := chromedp.FromContext(browserCtx)
	s := &Session{
		ctx:       browserCtx,
		cancel:    browserCancel,
		release:   allocCancel,
		runCtx:    base,
		logger:    d.logger,
		dom:       domains.NewDOM(c.Target),
		emulation: domains.NewEmulation(c.Target),
		input:     domains.NewInput(c.Target),
		page:      domains.NewPage(c.Target),
	}
	if p := c.Browser.Process(); p != nil {
		s.pid = p.Pid
		browserprocess.Register(base, d.logger, s.pid)
	}

	if v, err := domains.NewBrowser(c.Browser).GetVersion(ctx); err == nil {
		d.logger.Infof("Driver:OpenSession", "launched %s (protocol %s) pid:%d", v.Product, v.ProtocolVersion, s.pid)
	} else {
		d.logger.Warnf("Driver:OpenSession", "reading browser version: %v", err)
	}

	return s, nil
}
