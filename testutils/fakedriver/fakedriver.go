// Package fakedriver is an in-memory api.Driver for testing code that runs
// checks against a browser session.
package fakedriver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/guregu/null.v3"

	"github.com/knowledgekitchen/pagecheck/api"
)

// ErrSessionClosed is returned by every call on a closed Session.
var ErrSessionClosed = errors.New("session closed")

// Page is what a fake session shows after navigation.
type Page struct {
	Title    string
	Elements map[api.Locator]*Element
	// NavigateErr, when set, is returned by Navigate.
	NavigateErr error
}

// Element is a fake DOM element.
type Element struct {
	Text       string
	Attrs      map[string]string
	Style      map[string]string
	HoverStyle map[string]string
	// Width returns the rendered width for a viewport width.
	Width  func(viewportWidth int64) float64
	Height float64
}

// FixedWidth renders at w regardless of the viewport.
func FixedWidth(w float64) func(int64) float64 {
	return func(int64) float64 { return w }
}

// Driver hands out Sessions showing Page.
type Driver struct {
	Page *Page
	// OpenErr, when set, is returned by OpenSession.
	OpenErr error

	mu       sync.Mutex
	sessions []*Session
}

var _ api.Driver = &Driver{}

// New returns a Driver showing page.
func New(page *Page) *Driver {
	return &Driver{Page: page}
}

func (d *Driver) OpenSession(ctx context.Context) (api.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	s := &Session{page: d.Page, viewport: [2]int64{1280, 800}}
	d.sessions = append(d.sessions, s)

	return s, nil
}

// Opened returns how many sessions were opened.
func (d *Driver) Opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

// Live returns how many opened sessions are not closed yet.
func (d *Driver) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int
	for _, s := range d.sessions {
		if !s.isClosed() {
			n++
		}
	}
	return n
}

// Sessions returns the sessions opened so far.
func (d *Driver) Sessions() []*Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Session(nil), d.sessions...)
}

// Session is a fake browser tab.
type Session struct {
	mu       sync.Mutex
	page     *Page
	url      string
	viewport [2]int64
	hovered  *Element
	closed   int
	calls    []string
}

var _ api.Session = &Session{}

func (s *Session) record(format string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
	if s.closed > 0 {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed > 0
}

// Calls returns the session calls in order.
func (s *Session) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CloseCount returns how many times Close was called.
func (s *Session) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// URL returns the last navigated URL.
func (s *Session) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// Viewport returns the current viewport size.
func (s *Session) Viewport() (int64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport[0], s.viewport[1]
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.record("Navigate %s", url); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.page.NavigateErr != nil {
		return s.page.NavigateErr
	}
	s.mu.Lock()
	s.url = url
	s.mu.Unlock()
	return nil
}

func (s *Session) Title(ctx context.Context) (string, error) {
	if err := s.record("Title"); err != nil {
		return "", err
	}
	return s.page.Title, ctx.Err()
}

func (s *Session) FindElement(ctx context.Context, loc api.Locator) (api.Element, error) {
	if err := s.record("FindElement %s", loc); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	el, ok := s.page.Elements[loc]
	if !ok {
		return nil, &api.ElementNotFoundError{Locator: loc}
	}
	return &element{s: s, el: el, loc: loc}, nil
}

func (s *Session) Hover(ctx context.Context, el api.Element) error {
	if err := s.record("Hover %s", el.Locator()); err != nil {
		return err
	}
	e, ok := el.(*element)
	if !ok || e.s != s {
		return fmt.Errorf("element %s does not belong to this session", el.Locator())
	}
	s.mu.Lock()
	s.hovered = e.el
	s.mu.Unlock()
	return ctx.Err()
}

func (s *Session) SetViewport(ctx context.Context, width, height int64) error {
	if err := s.record("SetViewport %dx%d", width, height); err != nil {
		return err
	}
	s.mu.Lock()
	s.viewport = [2]int64{width, height}
	s.mu.Unlock()
	return ctx.Err()
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	if err := s.record("Screenshot"); err != nil {
		return nil, err
	}
	return []byte("\x89PNG fake"), ctx.Err()
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "Close")
	s.closed++
	return nil
}

type element struct {
	s   *Session
	el  *Element
	loc api.Locator
}

func (e *element) Locator() api.Locator { return e.loc }

func (e *element) Text(ctx context.Context) (string, error) {
	if err := e.s.record("Text %s", e.loc); err != nil {
		return "", err
	}
	return e.el.Text, ctx.Err()
}

func (e *element) Attribute(ctx context.Context, name string) (null.String, error) {
	if err := e.s.record("Attribute %s %s", e.loc, name); err != nil {
		return null.String{}, err
	}
	v, ok := e.el.Attrs[name]
	if !ok {
		return null.String{}, ctx.Err()
	}
	return null.StringFrom(v), ctx.Err()
}

func (e *element) ComputedStyle(ctx context.Context, property string) (string, error) {
	if err := e.s.record("ComputedStyle %s %s", e.loc, property); err != nil {
		return "", err
	}
	e.s.mu.Lock()
	hovered := e.s.hovered == e.el
	e.s.mu.Unlock()
	if hovered {
		if v, ok := e.el.HoverStyle[property]; ok {
			return v, ctx.Err()
		}
	}
	return e.el.Style[property], ctx.Err()
}

func (e *element) BoundingBox(ctx context.Context) (*api.Rect, error) {
	if err := e.s.record("BoundingBox %s", e.loc); err != nil {
		return nil, err
	}
	vw, _ := e.s.Viewport()
	r := &api.Rect{Height: e.el.Height}
	if e.el.Width != nil {
		r.Width = e.el.Width(vw)
	}
	return r, ctx.Err()
}
