package check

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComparisons(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		pass bool
	}{
		{name: "contains", err: Contains("title", "Welcome, Ada", "Ada"), pass: true},
		{name: "contains_missing", err: Contains("title", "Welcome, Ada", "Bob")},
		{name: "contains_is_case_sensitive", err: Contains("title", "Welcome, Ada", "ada")},
		{name: "equal", err: Equal("color", "rgb(0, 128, 0)", "rgb(0, 128, 0)"), pass: true},
		{name: "equal_differs", err: Equal("color", "rgb(0, 128, 0)", "rgb(0, 0, 0)")},
		{name: "prefix_fold", err: HasPrefixFold("font", "Helvetica Neue, sans-serif", "helvetica"), pass: true},
		{name: "prefix_fold_quoted", err: HasPrefixFold("font", `"Helvetica Neue"`, "helvetica")},
		{name: "prefix_fold_other", err: HasPrefixFold("font", "Arial, Helvetica", "helvetica")},
		{name: "between", err: Between("width", 320, 0, 500), pass: true},
		{name: "between_upper_bound_excluded", err: Between("width", 500, 0, 500)},
		{name: "between_lower_bound_excluded", err: Between("width", 0, 0, 500)},
		{name: "between_nan", err: Between("width", math.NaN(), 0, 500)},
		{name: "at_most", err: AtMost("width", 1200, 1200), pass: true},
		{name: "at_most_over", err: AtMost("width", 1201, 1200)},
		{name: "color_equal_rgb", err: ColorEqual("color", "rgb(0, 128, 0)", ExpectedColor), pass: true},
		{name: "color_equal_compact", err: ColorEqual("color", "rgba(0,128,0,1)", ExpectedColor), pass: true},
		{name: "color_equal_black", err: ColorEqual("color", "rgba(0, 0, 0, 1)", ExpectedColor)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if tt.pass {
				assert.NoError(t, tt.err)
				return
			}
			var mErr *AssertionMismatchError
			require.True(t, errors.As(tt.err, &mErr), "want *AssertionMismatchError, got %v", tt.err)
		})
	}
}

func TestAssertionMismatchErrorMessage(t *testing.T) {
	t.Parallel()

	err := Between(".container width at a 500px viewport", 500, 0, 500)
	var mErr *AssertionMismatchError
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, "(0, 500)", mErr.Expected)
	assert.Equal(t, "500", mErr.Observed)
	assert.Equal(t, "expected .container width at a 500px viewport to be within (0, 500), observed 500", err.Error())

	mErr.Check = "mobile_width"
	assert.Equal(t, "mobile_width: expected .container width at a 500px viewport to be within (0, 500), observed 500", err.Error())

	err = Contains("page title", "Welcome, Ada", "Bob")
	assert.Equal(t, `expected page title to contain "Bob", observed "Welcome, Ada"`, err.Error())
}

func TestNormalizeColor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{in: "rgb(0, 128, 0)", want: "rgba(0, 128, 0, 1)"},
		{in: "rgba(0,128,0,1)", want: "rgba(0, 128, 0, 1)"},
		{in: "RGBA(0, 128, 0, 0.5)", want: "rgba(0, 128, 0, 0.5)"},
		{in: "rgb(0 128 0 / 50%)", want: "rgba(0, 128, 0, 0.5)"},
		{in: "rgb(0%, 100%, 0%)", want: "rgba(0, 255, 0, 1)"},
		{in: "#008000", want: "rgba(0, 128, 0, 1)"},
		{in: "#0f0", want: "rgba(0, 255, 0, 1)"},
		{in: "#00800080", want: "rgba(0, 128, 0, 0.502)"},
		{in: " Green ", want: "green"},
		{in: "rgb(0, 128)", want: "rgb(0, 128)"},
		{in: "#zzz", want: "#zzz"},
	}
	for _, tt := range tests {
		tt := tt
		assert.Equal(t, tt.want, NormalizeColor(tt.in), "input %q", tt.in)
	}
}
