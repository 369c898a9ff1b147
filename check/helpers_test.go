package check

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/knowledgekitchen/pagecheck/api"
	"github.com/knowledgekitchen/pagecheck/settings"
	"github.com/knowledgekitchen/pagecheck/testutils/fakedriver"
)

// responsiveWidth is a container taking 90% of the viewport up to 1200px.
func responsiveWidth(vw int64) float64 {
	return math.Min(float64(vw)*0.9, 1200)
}

// goodPage passes every check of the battery for the name "Ada".
func goodPage() *fakedriver.Page {
	return &fakedriver.Page{
		Title: "Welcome, Ada",
		Elements: map[api.Locator]*fakedriver.Element{
			api.TagName(HeadingTag): {Text: "Ada Lovelace"},
			api.CSS(FirstParagraph): {Style: map[string]string{"color": "rgb(0, 128, 0)"}},
			api.CSS(SecondParagraph): {
				Style:      map[string]string{"font-family": "Georgia, serif"},
				HoverStyle: map[string]string{"font-family": "Helvetica, Arial, sans-serif"},
			},
			api.PartialLinkText(LinkTextFragment):                 {Text: "Visit the knowledge kitchen"},
			api.AttributeEquals("a", "href", KnowledgeKitchenURL): {Attrs: map[string]string{"href": KnowledgeKitchenURL}},
			api.CSS(Container): {Width: responsiveWidth, Height: 600},
		},
	}
}

func mustSettings(t *testing.T, name string) *settings.Settings {
	t.Helper()

	st, err := settings.FromMap(map[string]any{"site_url": "http://localhost/index.html", "name": name})
	require.NoError(t, err)
	return st
}

func writeSettings(t *testing.T, siteURL, name string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "settings.json")
	content := `{"site_url": "` + siteURL + `", "name": "` + name + `"}`
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}
