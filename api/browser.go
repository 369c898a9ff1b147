// Package api holds the browser driver capability that the checks depend on.
package api

import (
	"context"
	"fmt"

	"gopkg.in/guregu/null.v3"
)

// Driver opens browser sessions.
type Driver interface {
	OpenSession(ctx context.Context) (Session, error)
}

// Session is one live connection to a browser tab.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	// FindElement returns the first element matching loc, in the order the
	// browser reports matches. It returns an *ElementNotFoundError when
	// nothing matches.
	FindElement(ctx context.Context, loc Locator) (Element, error)
	Hover(ctx context.Context, el Element) error
	SetViewport(ctx context.Context, width, height int64) error
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Element is a handle to a DOM element found in a Session.
type Element interface {
	Locator() Locator
	Text(ctx context.Context) (string, error)
	// Attribute returns an invalid null.String when the attribute is absent.
	Attribute(ctx context.Context, name string) (null.String, error)
	ComputedStyle(ctx context.Context, property string) (string, error)
	BoundingBox(ctx context.Context) (*Rect, error)
}

// Rect is an element's bounding box in CSS pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ElementNotFoundError is returned when a locator matches no element.
type ElementNotFoundError struct {
	Locator Locator
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("no element matches %s", e.Locator)
}
