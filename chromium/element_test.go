package chromium

import (
	"testing"

	cdpd "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledgekitchen/pagecheck/api"
)

func TestQuadRect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		quad cdpd.Quad
		want api.Rect
	}{
		{
			name: "axis_aligned",
			quad: cdpd.Quad{10, 20, 460, 20, 460, 120, 10, 120},
			want: api.Rect{X: 10, Y: 20, Width: 450, Height: 100},
		},
		{
			name: "rotated",
			quad: cdpd.Quad{50, 0, 100, 50, 50, 100, 0, 50},
			want: api.Rect{X: 0, Y: 0, Width: 100, Height: 100},
		},
		{
			name: "short",
			quad: cdpd.Quad{1, 2, 3},
			want: api.Rect{},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, quadRect(tt.quad))
		})
	}
}

func TestQuery(t *testing.T) {
	t.Parallel()

	sel, _, err := query(api.CSS(".container"))
	require.NoError(t, err)
	assert.Equal(t, ".container", sel)

	sel, _, err = query(api.TagName("h1"))
	require.NoError(t, err)
	assert.Equal(t, "h1", sel)

	sel, _, err = query(api.PartialLinkText("knowledge"))
	require.NoError(t, err)
	assert.Equal(t, `//a[contains(normalize-space(.), "knowledge")]`, sel)

	sel, _, err = query(api.AttributeEquals("a", "href", "https://knowledge.kitchen"))
	require.NoError(t, err)
	assert.Equal(t, `//a[@href="https://knowledge.kitchen"]`, sel)

	_, _, err = query(api.Locator{Kind: api.LocatorKind(42), Value: "x"})
	assert.ErrorContains(t, err, "unsupported locator")
}

func TestAllocatorOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultLaunchOptions()
	base := len(opts.allocatorOptions())
	assert.Greater(t, base, len(chromedp.DefaultExecAllocatorOptions))

	opts.ExecutablePath = "/opt/chrome/chrome"
	opts.Args = []string{"--no-sandbox", "lang=en-US"}
	assert.Len(t, opts.allocatorOptions(), base+3)
}
