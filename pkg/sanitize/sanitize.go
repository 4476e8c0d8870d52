// Package sanitize cleans user supplied discussion markup before it is persisted or exported.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer wraps the bluemonday policies used for discussion content.
type Sanitizer struct {
	rich  *bluemonday.Policy
	plain *bluemonday.Policy
}

// New builds a sanitizer allowing the usual user-generated markup.
func New() *Sanitizer {
	rich := bluemonday.UGCPolicy()
	rich.AllowImages()
	rich.AddTargetBlankToFullyQualifiedLinks(true)
	rich.RequireNoReferrerOnLinks(true)
	return &Sanitizer{rich: rich, plain: bluemonday.StrictPolicy()}
}

// Message returns the message as a safe HTML fragment. Text outside tags comes back
// entity-escaped, so "1 < 2" is stored as "1 &lt; 2" and renders as typed.
func (s *Sanitizer) Message(raw string) string {
	return strings.TrimSpace(s.rich.Sanitize(raw))
}

// PlainText strips all markup, for exports that cannot render HTML.
func (s *Sanitizer) PlainText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.plain.Sanitize(raw)))
}
