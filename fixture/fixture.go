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

// Package fixture owns the browser session shared by a battery of checks.
package fixture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/knowledgekitchen/pagecheck/api"
	"github.com/knowledgekitchen/pagecheck/log"
	"github.com/knowledgekitchen/pagecheck/otel"
	"github.com/knowledgekitchen/pagecheck/settings"
)

// DefaultNavigationTimeout bounds opening the session and loading site_url.
const DefaultNavigationTimeout = 30 * time.Second

// Setup stages.
const (
	StageOpen     = "open"
	StageNavigate = "navigate"
)

// SessionSetupError is returned when the browser could not be launched or
// the site could not be loaded.
type SessionSetupError struct {
	Stage string
	URL   string
	Err   error
}

func (e *SessionSetupError) Error() string {
	if e.Stage == StageNavigate {
		return fmt.Sprintf("session setup: navigating to %q: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("session setup: opening browser session: %v", e.Err)
}

func (e *SessionSetupError) Unwrap() error { return e.Err }

// Fixture acquires one api.Session for the lifetime of a battery, and
// releases it exactly once.
type Fixture struct {
	driver       api.Driver
	settingsPath string
	navTimeout   time.Duration
	logger       *log.Logger

	setupOnce sync.Once
	setupErr  error
	session   api.Session
	settings  *settings.Settings

	mu          sync.Mutex
	tornDown    bool
	teardownErr error
}

// Option configures a Fixture.
type Option func(*Fixture)

// WithLogger sets the fixture logger.
func WithLogger(l *log.Logger) Option {
	return func(f *Fixture) { f.logger = l }
}

// WithNavigationTimeout bounds session opening and the initial navigation.
// A zero or negative d disables the bound.
func WithNavigationTimeout(d time.Duration) Option {
	return func(f *Fixture) { f.navTimeout = d }
}

// New returns a Fixture that will open its session with driver and load the
// settings at settingsPath.
func New(driver api.Driver, settingsPath string, opts ...Option) *Fixture {
	f := &Fixture{
		driver:       driver,
		settingsPath: settingsPath,
		navTimeout:   DefaultNavigationTimeout,
		logger:       log.NewNullLogger(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Setup loads the settings, opens a session and navigates it to site_url.
//
// A *settings.ConfigurationError is returned as is and no session is opened.
// Launch or navigation failures are returned as *SessionSetupError after any
// partially created session has been closed. Only the first call does any
// work; later calls return its outcome.
func (f *Fixture) Setup(ctx context.Context) (api.Session, *settings.Settings, error) {
	f.setupOnce.Do(func() {
		f.setupErr = f.setup(ctx)
	})
	if f.setupErr != nil {
		return nil, nil, f.setupErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, f.settings, nil
}

func (f *Fixture) setup(ctx context.Context) (err error) {
	st, err := settings.Load(f.settingsPath)
	if err != nil {
		f.logger.Errorf("Fixture:Setup", "%v", err)
		return err
	}
	f.mu.Lock()
	f.settings = st
	f.mu.Unlock()

	ctx, span := otel.Trace(ctx, "fixture.setup", otel.URLAttribute(st.SiteURL()))
	defer func() { otel.End(span, err) }()

	if f.navTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.navTimeout)
		defer cancel()
	}

	f.mu.Lock()
	if f.tornDown {
		f.mu.Unlock()
		return &SessionSetupError{Stage: StageOpen, URL: st.SiteURL(), Err: fmt.Errorf("fixture already torn down")}
	}
	f.mu.Unlock()

	f.logger.Debugf("Fixture:Setup", "opening session")
	s, err := f.driver.OpenSession(ctx)
	if err != nil {
		return &SessionSetupError{Stage: StageOpen, URL: st.SiteURL(), Err: err}
	}

	f.mu.Lock()
	f.session = s
	f.mu.Unlock()

	f.logger.Infof("Fixture:Setup", "loading %q", st.SiteURL())
	if err := s.Navigate(ctx, st.SiteURL()); err != nil {
		serr := &SessionSetupError{Stage: StageNavigate, URL: st.SiteURL(), Err: err}
		if cerr := f.Teardown(); cerr != nil {
			f.logger.Warnf("Fixture:Setup", "closing session after failed setup: %v", cerr)
		}
		return serr
	}

	return nil
}

// Session returns the live session, or nil before a successful Setup.
func (f *Fixture) Session() api.Session {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.tornDown {
		return nil
	}
	return f.session
}

// Settings returns the loaded settings, or nil before Setup loaded them.
func (f *Fixture) Settings() *settings.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.settings
}

// Teardown closes the session. It is safe to call on every exit path: when
// setup failed, never ran, or teardown already happened. Only the first call
// closes anything; later calls return the first result.
func (f *Fixture) Teardown() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.tornDown {
		return f.teardownErr
	}
	f.tornDown = true
	if f.session == nil {
		return nil
	}

	f.logger.Debugf("Fixture:Teardown", "closing session")
	if err := f.session.Close(); err != nil {
		f.teardownErr = fmt.Errorf("closing session: %w", err)
	}

	return f.teardownErr
}
