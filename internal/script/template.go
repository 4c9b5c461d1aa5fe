package script

import (
	"regexp"

	"github.com/tidwall/gjson"
)

var (
	placeholder = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)
	indexSuffix = regexp.MustCompile(`\[(\d+)\]`)
)

// Render replaces every {{ path }} in tmpl with the value at path in the
// JSON document scope. Paths are dotted and may index arrays with [n], e.g.
// {{input.event[0]}}. A path that does not resolve renders as "". Objects and
// arrays render as JSON.
func Render(tmpl string, scope []byte) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		path := placeholder.FindStringSubmatch(m)[1]
		res := gjson.GetBytes(scope, gjsonPath(path))
		if !res.Exists() || res.Type == gjson.Null {
			return ""
		}
		return res.String()
	})
}

// gjsonPath converts a[0].b into a.0.b.
func gjsonPath(path string) string {
	return indexSuffix.ReplaceAllString(path, ".$1")
}
