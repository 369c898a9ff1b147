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

// Package check holds the battery of page checks and the runner that executes
// them against one shared browser session.
package check

import (
	"context"
	"fmt"

	"github.com/knowledgekitchen/pagecheck/api"
	"github.com/knowledgekitchen/pagecheck/settings"
)

// What the battery expects to find on the page.
const (
	HeadingTag          = "h1"
	FirstParagraph      = ".first-paragraph"
	SecondParagraph     = ".second-paragraph"
	Container           = ".container"
	ExpectedColor       = "rgba(0, 128, 0, 1)"
	ExpectedFontPrefix  = "helvetica"
	LinkTextFragment    = "knowledge"
	KnowledgeKitchenURL = "https://knowledge.kitchen"

	viewportHeight = 800
)

// Func is a single check. It must only talk to the page through s and must
// honor ctx.
type Func func(ctx context.Context, s api.Session, st *settings.Settings) error

// Check is a named Func.
type Check struct {
	Name        string
	Description string
	Run         Func
}

// Battery returns the nine page checks in their canonical order. The checks
// don't depend on each other and can run in any order.
func Battery() []Check {
	return []Check{
		{Name: "title_text", Description: "page title contains the configured name", Run: TitleText},
		{Name: "element_text", Description: "h1 contains the configured name", Run: ElementText},
		{Name: "element_color", Description: "first paragraph is green", Run: ElementColor},
		{Name: "hover_behavior", Description: "second paragraph switches to Helvetica on hover", Run: HoverBehavior},
		{Name: "link_text_exists", Description: "a link mentioning knowledge exists", Run: LinkTextExists},
		{Name: "link_href_exists", Description: "a link to https://knowledge.kitchen exists", Run: LinkHrefExists},
		{Name: "mobile_width", Description: "container fits a 500px viewport", Run: MobileWidth},
		{Name: "desktop_width", Description: "container is between 500px and 1200px at a 1200px viewport", Run: DesktopWidth},
		{Name: "max_width", Description: "container is at most 1200px at a 2000px viewport", Run: MaxWidth},
	}
}

// TitleText checks the page title holds the configured name.
func TitleText(ctx context.Context, s api.Session, st *settings.Settings) error {
	title, err := s.Title(ctx)
	if err != nil {
		return err
	}
	return Contains("page title", title, st.Name())
}

// ElementText checks the h1 holds the configured name.
func ElementText(ctx context.Context, s api.Session, st *settings.Settings) error {
	el, err := s.FindElement(ctx, api.TagName(HeadingTag))
	if err != nil {
		return err
	}
	text, err := el.Text(ctx)
	if err != nil {
		return err
	}
	return Contains("h1 text", text, st.Name())
}

// ElementColor checks the first paragraph's text color.
func ElementColor(ctx context.Context, s api.Session, _ *settings.Settings) error {
	el, err := s.FindElement(ctx, api.CSS(FirstParagraph))
	if err != nil {
		return err
	}
	color, err := el.ComputedStyle(ctx, "color")
	if err != nil {
		return err
	}
	return ColorEqual("color of "+FirstParagraph, color, ExpectedColor)
}

// HoverBehavior checks the second paragraph's font changes to Helvetica when
// the pointer is over it.
func HoverBehavior(ctx context.Context, s api.Session, _ *settings.Settings) error {
	el, err := s.FindElement(ctx, api.CSS(SecondParagraph))
	if err != nil {
		return err
	}
	if err := s.Hover(ctx, el); err != nil {
		return err
	}
	font, err := el.ComputedStyle(ctx, "font-family")
	if err != nil {
		return err
	}
	return HasPrefixFold("font-family of hovered "+SecondParagraph, font, ExpectedFontPrefix)
}

// LinkTextExists checks some link's text mentions knowledge.
func LinkTextExists(ctx context.Context, s api.Session, _ *settings.Settings) error {
	_, err := s.FindElement(ctx, api.PartialLinkText(LinkTextFragment))
	return err
}

// LinkHrefExists checks some link points exactly at knowledge.kitchen.
func LinkHrefExists(ctx context.Context, s api.Session, _ *settings.Settings) error {
	_, err := s.FindElement(ctx, api.AttributeEquals("a", "href", KnowledgeKitchenURL))
	return err
}

// MobileWidth checks the container is narrower than a 500px viewport.
func MobileWidth(ctx context.Context, s api.Session, _ *settings.Settings) error {
	return containerWidth(ctx, s, 500, func(subject string, w float64) error {
		return Between(subject, w, 0, 500)
	})
}

// DesktopWidth checks the container is between 500px and 1200px at a 1200px
// viewport.
func DesktopWidth(ctx context.Context, s api.Session, _ *settings.Settings) error {
	return containerWidth(ctx, s, 1200, func(subject string, w float64) error {
		return Between(subject, w, 500, 1200)
	})
}

// MaxWidth checks the container stops growing at 1200px.
func MaxWidth(ctx context.Context, s api.Session, _ *settings.Settings) error {
	return containerWidth(ctx, s, 2000, func(subject string, w float64) error {
		return AtMost(subject, w, 1200)
	})
}

// containerWidth sets its own viewport first so the width checks don't
// depend on the order they run in.
func containerWidth(
	ctx context.Context, s api.Session, viewportWidth int64, cmp func(subject string, w float64) error,
) error {
	if err := s.SetViewport(ctx, viewportWidth, viewportHeight); err != nil {
		return err
	}
	el, err := s.FindElement(ctx, api.CSS(Container))
	if err != nil {
		return err
	}
	box, err := el.BoundingBox(ctx)
	if err != nil {
		return err
	}
	return cmp(fmtSubject(viewportWidth), box.Width)
}

func fmtSubject(viewportWidth int64) string {
	return fmt.Sprintf("%s width at a %dpx viewport", Container, viewportWidth)
}
