/*
 *
 * pagecheck - browser acceptance checks for a static web page
 * Copyright (C) 2021 Knowledge Kitchen
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package check

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// AssertionMismatchError is returned when an observed value does not satisfy
// the comparison a check makes.
type AssertionMismatchError struct {
	Check      string
	Subject    string
	Comparison string
	Expected   string
	Observed   string
}

func (e *AssertionMismatchError) Error() string {
	msg := fmt.Sprintf("expected %s to %s %s, observed %s", e.Subject, e.Comparison, e.Expected, e.Observed)
	if e.Check == "" {
		return msg
	}
	return e.Check + ": " + msg
}

func mismatch(subject, comparison, expected, observed string) error {
	return &AssertionMismatchError{
		Subject:    subject,
		Comparison: comparison,
		Expected:   expected,
		Observed:   observed,
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Contains passes when want is a substring of observed.
func Contains(subject, observed, want string) error {
	if strings.Contains(observed, want) {
		return nil
	}
	return mismatch(subject, "contain", strconv.Quote(want), strconv.Quote(observed))
}

// Equal passes when observed is exactly want.
func Equal(subject, observed, want string) error {
	if observed == want {
		return nil
	}
	return mismatch(subject, "equal", strconv.Quote(want), strconv.Quote(observed))
}

// HasPrefixFold passes when lower-cased observed starts with lower-cased prefix.
func HasPrefixFold(subject, observed, prefix string) error {
	if strings.HasPrefix(strings.ToLower(observed), strings.ToLower(prefix)) {
		return nil
	}
	return mismatch(subject, "start with (ignoring case)", strconv.Quote(prefix), strconv.Quote(observed))
}

// Between passes when lo < observed < hi.
func Between(subject string, observed, lo, hi float64) error {
	if lo < observed && observed < hi {
		return nil
	}
	return mismatch(subject, "be within", fmt.Sprintf("(%s, %s)", formatFloat(lo), formatFloat(hi)), formatFloat(observed))
}

// AtMost passes when observed <= max.
func AtMost(subject string, observed, max float64) error {
	if observed <= max {
		return nil
	}
	return mismatch(subject, "be at most", formatFloat(max), formatFloat(observed))
}

// ColorEqual passes when observed and want name the same color once both
// are normalized with NormalizeColor.
func ColorEqual(subject, observed, want string) error {
	if NormalizeColor(observed) == NormalizeColor(want) {
		return nil
	}
	return mismatch(subject, "equal", strconv.Quote(NormalizeColor(want)), strconv.Quote(observed))
}

var rgbFunc = regexp.MustCompile(`^rgba?\((.*)\)$`) //nolint:gochecknoglobals

// NormalizeColor renders a CSS color as "rgba(r, g, b, a)". It understands
// rgb(), rgba() in comma or space syntax and #rgb, #rgba, #rrggbb, #rrggbbaa.
// Anything else is returned trimmed and lower-cased.
func NormalizeColor(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	var (
		ch [4]float64
		ok bool
	)
	if strings.HasPrefix(c, "#") {
		ch, ok = parseHexColor(c[1:])
	} else if m := rgbFunc.FindStringSubmatch(c); m != nil {
		ch, ok = parseRGBArgs(m[1])
	}
	if !ok {
		return c
	}

	return fmt.Sprintf("rgba(%s, %s, %s, %s)",
		formatFloat(ch[0]), formatFloat(ch[1]), formatFloat(ch[2]), formatFloat(ch[3]))
}

func parseRGBArgs(args string) ([4]float64, bool) {
	ch := [4]float64{0, 0, 0, 1}
	fields := strings.FieldsFunc(args, func(r rune) bool {
		return r == ',' || r == '/' || r == ' ' || r == '\t'
	})
	if len(fields) != 3 && len(fields) != 4 {
		return ch, false
	}
	for i, f := range fields {
		pct := strings.HasSuffix(f, "%")
		v, err := strconv.ParseFloat(strings.TrimSuffix(f, "%"), 64)
		if err != nil {
			return ch, false
		}
		switch {
		case i == 3 && pct:
			v /= 100
		case i < 3 && pct:
			v = math.Round(v * 255 / 100)
		}
		ch[i] = v
	}

	return ch, true
}

func parseHexColor(h string) ([4]float64, bool) {
	ch := [4]float64{0, 0, 0, 1}
	switch len(h) {
	case 3, 4:
		for i := range h {
			v, err := strconv.ParseUint(strings.Repeat(h[i:i+1], 2), 16, 8)
			if err != nil {
				return ch, false
			}
			ch[i] = float64(v)
		}
	case 6, 8:
		for i := 0; i < len(h); i += 2 {
			v, err := strconv.ParseUint(h[i:i+2], 16, 8)
			if err != nil {
				return ch, false
			}
			ch[i/2] = float64(v)
		}
	default:
		return ch, false
	}
	if len(h) == 4 || len(h) == 8 {
		ch[3] = math.Round(ch[3]/255*1000) / 1000
	}

	return ch, true
}
