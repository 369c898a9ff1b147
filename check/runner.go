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
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/knowledgekitchen/pagecheck/api"
	"github.com/knowledgekitchen/pagecheck/browserprocess"
	"github.com/knowledgekitchen/pagecheck/fixture"
	"github.com/knowledgekitchen/pagecheck/log"
	"github.com/knowledgekitchen/pagecheck/otel"
	"github.com/knowledgekitchen/pagecheck/settings"
	"github.com/knowledgekitchen/pagecheck/storage"
)

// DefaultCheckTimeout bounds every driver call a single check makes.
const DefaultCheckTimeout = 10 * time.Second

const screenshotTimeout = 5 * time.Second

// Runner executes checks one at a time against the session of a fixture.
type Runner struct {
	fixture   *fixture.Fixture
	timeout   time.Duration
	artifacts *storage.Artifacts
	filter    *regexp.Regexp
	logger    *log.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithCheckTimeout bounds each check. A zero or negative d disables the bound.
func WithCheckTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

// WithArtifacts saves a screenshot of the page for every failed check.
func WithArtifacts(a *storage.Artifacts) RunnerOption {
	return func(r *Runner) { r.artifacts = a }
}

// WithFilter only runs checks whose name matches re.
func WithFilter(re *regexp.Regexp) RunnerOption {
	return func(r *Runner) { r.filter = re }
}

// WithLogger sets the runner logger.
func WithLogger(l *log.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner returns a Runner using f for its session.
func NewRunner(f *fixture.Fixture, opts ...RunnerOption) *Runner {
	r := &Runner{
		fixture: f,
		timeout: DefaultCheckTimeout,
		logger:  log.NewNullLogger(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run sets up the fixture, runs checks in order and tears the fixture down.
//
// When setup fails the report holds that single fatal error and no check
// runs. A failing or panicking check never stops the ones after it. Teardown
// happens on every path.
func (r *Runner) Run(ctx context.Context, checks []Check) (report *Report) {
	report = &Report{
		RunID:   browserprocess.GetRunID(ctx),
		Started: time.Now(),
	}

	ctx, span := otel.Trace(ctx, "battery")
	defer func() {
		if err := r.fixture.Teardown(); err != nil {
			r.logger.Warnf("Runner:Run", "teardown: %v", err)
			report.TeardownError = err.Error()
		}
		report.Duration = time.Since(report.Started)
		otel.End(span, report.Fatal)
	}()

	s, st, err := r.fixture.Setup(ctx)
	if err != nil {
		report.setFatal(err)
		return report
	}
	report.SiteURL = st.SiteURL()

	for _, c := range checks {
		if r.filter != nil && !r.filter.MatchString(c.Name) {
			r.logger.Debugf("Runner:Run", "skipping %s", c.Name)
			continue
		}
		report.Results = append(report.Results, r.runCheck(ctx, s, st, c))
	}

	return report
}

func (r *Runner) runCheck(ctx context.Context, s api.Session, st *settings.Settings, c Check) Result {
	start := time.Now()

	cctx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	cctx, span := otel.Trace(cctx, "check."+c.Name, otel.CheckAttributes(c.Name, c.Description))
	err := call(cctx, s, st, c)
	otel.End(span, err)

	res := Result{
		Name:        c.Name,
		Description: c.Description,
		Passed:      err == nil,
		Duration:    time.Since(start),
	}
	if err == nil {
		r.logger.Infof("Runner:runCheck", "PASS %s", c.Name)
		return res
	}

	res.setError(c.Name, err)
	r.logger.Infof("Runner:runCheck", "FAIL %s: %v", c.Name, err)
	res.Screenshot = r.screenshot(ctx, s, c.Name)

	return res
}

// call runs c, turning a panic into that check's failure.
func call(ctx context.Context, s api.Session, st *settings.Settings, c Check) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("check panicked: %v", p)
		}
	}()

	return c.Run(ctx, s, st)
}

func (r *Runner) screenshot(ctx context.Context, s api.Session, name string) string {
	if r.artifacts == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, screenshotTimeout)
	defer cancel()

	buf, err := s.Screenshot(ctx)
	if err != nil {
		r.logger.Warnf("Runner:screenshot", "capturing %s: %v", name, err)
		return ""
	}
	p, err := r.artifacts.Save(ctx, name, "png", buf)
	if err != nil {
		r.logger.Warnf("Runner:screenshot", "%v", err)
		return ""
	}
	r.logger.Debugf("Runner:screenshot", "saved %s", p)

	return p
}

// Result kinds.
const (
	KindMismatch = "mismatch"
	KindNotFound = "not_found"
	KindError    = "error"
)

// Result is the outcome of one check.
type Result struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Passed      bool          `json:"passed"`
	Kind        string        `json:"kind,omitempty"`
	Message     string        `json:"message,omitempty"`
	Expected    string        `json:"expected,omitempty"`
	Observed    string        `json:"observed,omitempty"`
	Screenshot  string        `json:"screenshot,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
	Err         error         `json:"-"`
}

func (res *Result) setError(check string, err error) {
	var (
		mErr  *AssertionMismatchError
		nfErr *api.ElementNotFoundError
	)
	switch {
	case errors.As(err, &mErr):
		if mErr.Check == "" {
			mErr.Check = check
		}
		res.Kind = KindMismatch
		res.Expected = mErr.Expected
		res.Observed = mErr.Observed
	case errors.As(err, &nfErr):
		res.Kind = KindNotFound
	default:
		res.Kind = KindError
	}
	res.Err = err
	res.Message = err.Error()
}

// Report is the outcome of a battery run.
type Report struct {
	RunID         string        `json:"run_id,omitempty"`
	SiteURL       string        `json:"site_url,omitempty"`
	Started       time.Time     `json:"started"`
	Duration      time.Duration `json:"duration_ns"`
	FatalMessage  string        `json:"fatal,omitempty"`
	Results       []Result      `json:"results"`
	TeardownError string        `json:"teardown_error,omitempty"`
	Fatal         error         `json:"-"`
}

func (rep *Report) setFatal(err error) {
	rep.Fatal = err
	rep.FatalMessage = err.Error()
}

// Failed returns how many checks failed.
func (rep *Report) Failed() int {
	var n int
	for _, res := range rep.Results {
		if !res.Passed {
			n++
		}
	}
	return n
}

// Passed reports whether setup succeeded and every check that ran passed.
func (rep *Report) Passed() bool {
	return rep.Fatal == nil && rep.Failed() == 0
}

// Process exit codes.
const (
	ExitPassed = 0
	ExitFailed = 1
	ExitFatal  = 2
)

// ExitCode maps the report to a process exit code.
func (rep *Report) ExitCode() int {
	switch {
	case rep.Fatal != nil:
		return ExitFatal
	case rep.Failed() > 0:
		return ExitFailed
	default:
		return ExitPassed
	}
}
