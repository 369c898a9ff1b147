package check

import (
	"context"
	"errors"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledgekitchen/pagecheck/api"
	"github.com/knowledgekitchen/pagecheck/browserprocess"
	"github.com/knowledgekitchen/pagecheck/fixture"
	"github.com/knowledgekitchen/pagecheck/settings"
	"github.com/knowledgekitchen/pagecheck/storage"
	"github.com/knowledgekitchen/pagecheck/testutils/fakedriver"
)

const siteURL = "http://localhost/index.html"

func newRunner(t *testing.T, d *fakedriver.Driver, opts ...RunnerOption) *Runner {
	t.Helper()

	f := fixture.New(d, writeSettings(t, siteURL, "Ada"))
	return NewRunner(f, opts...)
}

func onlySession(t *testing.T, d *fakedriver.Driver) *fakedriver.Session {
	t.Helper()

	sessions := d.Sessions()
	require.Len(t, sessions, 1)
	return sessions[0]
}

func TestRunnerAllPass(t *testing.T) {
	t.Parallel()

	d := fakedriver.New(goodPage())
	runID := uuid.NewString()
	ctx := browserprocess.WithRunID(context.Background(), runID)

	rep := newRunner(t, d).Run(ctx, Battery())

	require.NoError(t, rep.Fatal)
	require.Len(t, rep.Results, 9)
	for _, res := range rep.Results {
		assert.True(t, res.Passed, "%s: %s", res.Name, res.Message)
		assert.Empty(t, res.Kind, res.Name)
	}
	assert.True(t, rep.Passed())
	assert.Equal(t, ExitPassed, rep.ExitCode())
	assert.Equal(t, runID, rep.RunID)
	assert.Equal(t, siteURL, rep.SiteURL)
	assert.Empty(t, rep.TeardownError)

	s := onlySession(t, d)
	assert.Equal(t, 1, s.CloseCount())
	assert.Equal(t, 0, d.Live())
	assert.Equal(t, siteURL, s.URL())
}

func TestRunnerSetupFailureIsSingleFatal(t *testing.T) {
	t.Parallel()

	page := goodPage()
	page.NavigateErr = errors.New("net::ERR_CONNECTION_REFUSED")
	d := fakedriver.New(page)

	var ran int
	checks := []Check{{Name: "counted", Run: func(context.Context, api.Session, *settings.Settings) error {
		ran++
		return nil
	}}}
	rep := newRunner(t, d).Run(context.Background(), append(checks, Battery()...))

	var serr *fixture.SessionSetupError
	require.ErrorAs(t, rep.Fatal, &serr)
	assert.Equal(t, fixture.StageNavigate, serr.Stage)
	assert.Equal(t, siteURL, serr.URL)
	assert.Contains(t, rep.FatalMessage, "net::ERR_CONNECTION_REFUSED")
	assert.Empty(t, rep.Results)
	assert.Zero(t, ran)
	assert.False(t, rep.Passed())
	assert.Equal(t, ExitFatal, rep.ExitCode())

	s := onlySession(t, d)
	assert.Equal(t, []string{"Navigate " + siteURL, "Close"}, s.Calls())
	assert.Equal(t, 1, s.CloseCount())
}

func TestRunnerOpenFailure(t *testing.T) {
	t.Parallel()

	d := fakedriver.New(goodPage())
	d.OpenErr = errors.New("chrome not found")

	rep := newRunner(t, d).Run(context.Background(), Battery())

	var serr *fixture.SessionSetupError
	require.ErrorAs(t, rep.Fatal, &serr)
	assert.Equal(t, fixture.StageOpen, serr.Stage)
	assert.Empty(t, rep.Results)
	assert.Equal(t, ExitFatal, rep.ExitCode())
	assert.Empty(t, d.Sessions())
}

func TestRunnerConfigurationError(t *testing.T) {
	t.Parallel()

	d := fakedriver.New(goodPage())
	f := fixture.New(d, t.TempDir()+"/missing.json")

	rep := NewRunner(f).Run(context.Background(), Battery())

	var cerr *settings.ConfigurationError
	require.ErrorAs(t, rep.Fatal, &cerr)
	assert.Empty(t, rep.Results)
	assert.Equal(t, ExitFatal, rep.ExitCode())
	assert.Zero(t, d.Opened())
}

func TestRunnerFailureDoesNotStopLaterChecks(t *testing.T) {
	t.Parallel()

	page := goodPage()
	page.Elements[api.CSS(FirstParagraph)] = &fakedriver.Element{Style: map[string]string{"color": "rgb(0, 0, 0)"}}
	delete(page.Elements, api.AttributeEquals("a", "href", KnowledgeKitchenURL))
	d := fakedriver.New(page)

	rep := newRunner(t, d).Run(context.Background(), Battery())

	require.NoError(t, rep.Fatal)
	require.Len(t, rep.Results, 9)
	assert.Equal(t, 2, rep.Failed())
	assert.Equal(t, ExitFailed, rep.ExitCode())

	byName := map[string]Result{}
	for _, res := range rep.Results {
		byName[res.Name] = res
	}

	color := byName["element_color"]
	assert.False(t, color.Passed)
	assert.Equal(t, KindMismatch, color.Kind)
	assert.Equal(t, `"rgba(0, 128, 0, 1)"`, color.Expected)
	assert.Equal(t, `"rgb(0, 0, 0)"`, color.Observed)
	assert.True(t, strings.HasPrefix(color.Message, "element_color: expected color of .first-paragraph"), color.Message)

	href := byName["link_href_exists"]
	assert.False(t, href.Passed)
	assert.Equal(t, KindNotFound, href.Kind)
	var nfErr *api.ElementNotFoundError
	assert.ErrorAs(t, href.Err, &nfErr)

	assert.True(t, byName["max_width"].Passed)
	assert.Equal(t, 1, onlySession(t, d).CloseCount())
}

func TestRunnerRecoversPanics(t *testing.T) {
	t.Parallel()

	d := fakedriver.New(goodPage())
	checks := []Check{
		{Name: "panics", Run: func(context.Context, api.Session, *settings.Settings) error {
			panic("boom")
		}},
		{Name: "title_text", Run: TitleText},
	}

	rep := newRunner(t, d).Run(context.Background(), checks)

	require.Len(t, rep.Results, 2)
	assert.False(t, rep.Results[0].Passed)
	assert.Equal(t, KindError, rep.Results[0].Kind)
	assert.Equal(t, "check panicked: boom", rep.Results[0].Message)
	assert.True(t, rep.Results[1].Passed)
	assert.Equal(t, 1, onlySession(t, d).CloseCount())
}

func TestRunnerCheckTimeout(t *testing.T) {
	t.Parallel()

	d := fakedriver.New(goodPage())
	checks := []Check{
		{Name: "hangs", Run: func(ctx context.Context, _ api.Session, _ *settings.Settings) error {
			<-ctx.Done()
			return ctx.Err()
		}},
		{Name: "title_text", Run: TitleText},
	}

	rep := newRunner(t, d, WithCheckTimeout(20*time.Millisecond)).Run(context.Background(), checks)

	require.Len(t, rep.Results, 2)
	assert.Equal(t, KindError, rep.Results[0].Kind)
	assert.ErrorIs(t, rep.Results[0].Err, context.DeadlineExceeded)
	assert.True(t, rep.Results[1].Passed)
}

func TestRunnerFilter(t *testing.T) {
	t.Parallel()

	d := fakedriver.New(goodPage())

	rep := newRunner(t, d, WithFilter(regexp.MustCompile(`_width$`))).Run(context.Background(), Battery())

	var names []string
	for _, res := range rep.Results {
		names = append(names, res.Name)
	}
	assert.Equal(t, []string{"mobile_width", "desktop_width", "max_width"}, names)
	assert.NotContains(t, onlySession(t, d).Calls(), "Title")
}

func TestRunnerFilterMatchingNothingPasses(t *testing.T) {
	t.Parallel()

	d := fakedriver.New(goodPage())

	rep := newRunner(t, d, WithFilter(regexp.MustCompile(`^nope$`))).Run(context.Background(), Battery())

	assert.Empty(t, rep.Results)
	assert.Equal(t, ExitPassed, rep.ExitCode())
	assert.Equal(t, 1, onlySession(t, d).CloseCount())
}

func TestRunnerScreenshotsFailures(t *testing.T) {
	t.Parallel()

	page := goodPage()
	page.Title = "Welcome"
	d := fakedriver.New(page)
	artifacts := storage.NewArtifacts(t.TempDir(), "run-1", nil)

	rep := newRunner(t, d, WithArtifacts(artifacts)).Run(context.Background(), Battery())

	require.Equal(t, 1, rep.Failed())
	res := rep.Results[0]
	require.Equal(t, "title_text", res.Name)
	require.NotEmpty(t, res.Screenshot)

	data, err := os.ReadFile(res.Screenshot)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG fake", string(data))
	assert.Contains(t, res.Screenshot, "title_text.png")

	for _, res := range rep.Results[1:] {
		assert.Empty(t, res.Screenshot, res.Name)
	}
}

func TestRunnerTearsDownOnce(t *testing.T) {
	t.Parallel()

	d := fakedriver.New(goodPage())
	f := fixture.New(d, writeSettings(t, siteURL, "Ada"))
	r := NewRunner(f)

	rep := r.Run(context.Background(), []Check{{Name: "title_text", Run: TitleText}})
	assert.Empty(t, rep.TeardownError)

	// The runner already tore the fixture down.
	require.NoError(t, f.Teardown())
	assert.Nil(t, f.Session())
	assert.Equal(t, 1, onlySession(t, d).CloseCount())
}
