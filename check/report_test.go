package check

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mixedReport() *Report {
	return &Report{
		RunID:    "run-1",
		SiteURL:  siteURL,
		Started:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration: 1234567 * time.Microsecond,
		Results: []Result{
			{Name: "title_text", Passed: true, Duration: 12 * time.Millisecond},
			{
				Name:       "element_color",
				Kind:       KindMismatch,
				Message:    `element_color: expected color of .first-paragraph to equal "rgba(0, 128, 0, 1)", observed "rgb(0, 0, 0)"`,
				Expected:   `"rgba(0, 128, 0, 1)"`,
				Observed:   `"rgb(0, 0, 0)"`,
				Screenshot: "artifacts/run-1/element_color.png",
				Duration:   8 * time.Millisecond,
			},
			{
				Name:     "link_href_exists",
				Kind:     KindNotFound,
				Message:  "no element matches xpath //a[@href='https://knowledge.kitchen']",
				Duration: 3400 * time.Microsecond,
			},
		},
	}
}

func TestTextPrinter(t *testing.T) {
	t.Parallel()

	fatalErr := errors.New(`session setup: navigating to "http://localhost/missing.html": net::ERR_FILE_NOT_FOUND`)

	tests := []struct {
		name string
		rep  *Report
	}{
		{name: "report_mixed", rep: mixedReport()},
		{name: "report_fatal", rep: &Report{Fatal: fatalErr, FatalMessage: fatalErr.Error()}},
		{
			name: "report_teardown",
			rep: &Report{
				Duration:      2 * time.Second,
				Results:       []Result{{Name: "max_width", Passed: true, Duration: time.Millisecond}},
				TeardownError: "closing session: browser already gone",
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			require.NoError(t, NewTextPrinter(true).Print(&buf, tt.rep))

			g := goldie.New(t,
				goldie.WithFixtureDir("testdata"),
				goldie.WithNameSuffix(".golden"),
			)
			g.Assert(t, tt.name, buf.Bytes())
		})
	}
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, mixedReport()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "run-1", got["run_id"])
	assert.Equal(t, siteURL, got["site_url"])
	assert.NotContains(t, got, "fatal")
	assert.NotContains(t, got, "teardown_error")

	results, ok := got["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 3)

	color, ok := results[1].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "element_color", color["name"])
	assert.Equal(t, false, color["passed"])
	assert.Equal(t, KindMismatch, color["kind"])
	assert.Equal(t, "artifacts/run-1/element_color.png", color["screenshot"])
	assert.EqualValues(t, 8e6, color["duration_ns"])
}

func TestWriteJSONFatal(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := errors.New("boom")
	require.NoError(t, WriteJSON(&buf, &Report{Fatal: err, FatalMessage: err.Error()}))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "boom", got["fatal"])
	assert.Nil(t, got["results"])
}
