package api

import (
	"fmt"
	"strings"
)

// LocatorKind tells the driver how to interpret a Locator value.
type LocatorKind int

const (
	ByCSS LocatorKind = iota
	ByTagName
	ByPartialLinkText
	ByXPath
)

func (k LocatorKind) String() string {
	switch k {
	case ByCSS:
		return "css"
	case ByTagName:
		return "tag name"
	case ByPartialLinkText:
		return "partial link text"
	case ByXPath:
		return "xpath"
	default:
		return fmt.Sprintf("LocatorKind(%d)", int(k))
	}
}

// Locator identifies zero or more page elements.
type Locator struct {
	Kind  LocatorKind
	Value string
}

func (l Locator) String() string {
	return fmt.Sprintf("%s %q", l.Kind, l.Value)
}

// CSS locates elements with a CSS selector.
func CSS(selector string) Locator { return Locator{Kind: ByCSS, Value: selector} }

// TagName locates elements by tag name.
func TagName(tag string) Locator { return Locator{Kind: ByTagName, Value: tag} }

// PartialLinkText locates anchors whose text contains text.
func PartialLinkText(text string) Locator { return Locator{Kind: ByPartialLinkText, Value: text} }

// XPath locates elements with an XPath expression.
func XPath(expr string) Locator { return Locator{Kind: ByXPath, Value: expr} }

// AttributeEquals locates tag elements whose attr is exactly value.
func AttributeEquals(tag, attr, value string) Locator {
	return XPath(fmt.Sprintf("//%s[@%s=%s]", tag, attr, XPathLiteral(value)))
}

// PartialLinkTextXPath is the XPath equivalent of a partial link text
// locator, for drivers that can only evaluate XPath.
func PartialLinkTextXPath(text string) string {
	return fmt.Sprintf("//a[contains(normalize-space(.), %s)]", XPathLiteral(text))
}

// XPathLiteral quotes s as an XPath string literal. XPath 1.0 has no escape
// sequences, so strings holding both quote kinds are built with concat().
func XPathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	args := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			args = append(args, `'"'`)
		}
		if p != "" {
			args = append(args, `"`+p+`"`)
		}
	}
	return "concat(" + strings.Join(args, ", ") + ")"
}
