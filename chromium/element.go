package chromium

import (
	"context"
	"math"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/css"
	cdpd "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"
	"gopkg.in/guregu/null.v3"

	"github.com/knowledgekitchen/pagecheck/api"
)

// Ensure element implements the api.Element interface.
var _ api.Element = &element{}

type element struct {
	s    *Session
	node *cdp.Node
	loc  api.Locator
}

func (e *element) Locator() api.Locator {
	return e.loc
}

func (e *element) ids() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

// Text returns the rendered text of the element.
func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	if err := e.s.run(ctx, chromedp.Text(e.ids(), &text, chromedp.ByNodeID)); err != nil {
		return "", errors.Wrapf(err, "reading text of %s", e.loc)
	}

	return text, nil
}

func (e *element) Attribute(ctx context.Context, name string) (null.String, error) {
	cctx, cancel := e.s.bind(ctx)
	defer cancel()

	attrs, err := e.s.dom.GetAttributes(cctx, e.node.NodeID)
	if err != nil {
		return null.String{}, errors.Wrapf(err, "reading attribute %q of %s", name, e.loc)
	}
	v, ok := attrs[name]
	if !ok {
		return null.String{}, nil
	}

	return null.StringFrom(v), nil
}

// ComputedStyle returns the resolved value of a CSS property, or an empty
// string when the browser does not report the property.
func (e *element) ComputedStyle(ctx context.Context, property string) (string, error) {
	var style []*css.ComputedStyleProperty
	if err := e.s.run(ctx, chromedp.ComputedStyle(e.ids(), &style, chromedp.ByNodeID)); err != nil {
		return "", errors.Wrapf(err, "reading computed %s of %s", property, e.loc)
	}
	for _, p := range style {
		if p.Name == property {
			return p.Value, nil
		}
	}

	return "", nil
}

// BoundingBox returns the element's border box in CSS pixels.
func (e *element) BoundingBox(ctx context.Context) (*api.Rect, error) {
	cctx, cancel := e.s.bind(ctx)
	defer cancel()

	box, err := e.s.dom.GetBoxModel(cctx, e.node.NodeID)
	if err != nil {
		return nil, errors.Wrapf(err, "reading bounding box of %s", e.loc)
	}
	r := quadRect(box.Border)

	return &r, nil
}

// quadRect returns the axis-aligned rectangle enclosing q.
func quadRect(q cdpd.Quad) api.Rect {
	if len(q) < 8 {
		return api.Rect{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := 0; i+1 < len(q); i += 2 {
		minX, maxX = math.Min(minX, q[i]), math.Max(maxX, q[i])
		minY, maxY = math.Min(minY, q[i+1]), math.Max(maxY, q[i+1])
	}

	return api.Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
