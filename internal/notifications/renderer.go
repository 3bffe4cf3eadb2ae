package notifications

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/merchware/notify/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// RecipientType selects the view family a notification renders with.
type RecipientType string

// Recipient types.
const (
	RecipientTypeCustomer RecipientType = "customer"
	RecipientTypeAdmin    RecipientType = "admin"
)

// RecipientTypeFor returns the view family for a recipient.
func RecipientTypeFor(r domain.Recipient) RecipientType {
	if r.IsCustomer {
		return RecipientTypeCustomer
	}
	return RecipientTypeAdmin
}

// Rendered is the output of rendering a template against event data.
type Rendered struct {
	Subject string            `json:"subject"`
	Body    string            `json:"body"`
	Slots   map[string]string `json:"slots"`
}

var tokenPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.-]+)\s*\}\}`)

// Renderer merges event data into notification templates. Rendering
// fails closed: a token whose variable is absent is left verbatim, and
// Render never returns an error.
type Renderer struct {
	titleCaser cases.Caser
}

// NewRenderer creates a renderer.
func NewRenderer() *Renderer {
	return &Renderer{titleCaser: cases.Title(language.English)}
}

// Render substitutes {{key}} tokens in the template subject and in every
// slot using the flattened event data. The body is the rendered slots
// joined in stable slot-name order.
func (r *Renderer) Render(tmpl domain.NotificationTemplate, data map[string]any) Rendered {
	vars := Flatten(data)

	rendered := Rendered{
		Subject: substitute(tmpl.Subject, vars),
		Slots:   make(map[string]string, len(tmpl.Slots)),
	}

	names := make([]string, 0, len(tmpl.Slots))
	for name := range tmpl.Slots {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		out := substitute(tmpl.Slots[name], vars)
		rendered.Slots[name] = out
		if out != "" {
			parts = append(parts, out)
		}
	}
	rendered.Body = strings.Join(parts, "\n\n")

	return rendered
}

// Resolve picks the template for a delivery: the stored tenant template
// when one exists for the key, otherwise the built-in default for the
// {recipient_type}/{view_name} view, otherwise the generic fallback.
func (r *Renderer) Resolve(stored *domain.NotificationTemplate, recipientType RecipientType, viewName string) domain.NotificationTemplate {
	if stored != nil {
		return *stored
	}
	view := fmt.Sprintf("%s/%s", recipientType, viewName)
	if tmpl, ok := builtinTemplates[view]; ok {
		return tmpl
	}
	fallback := builtinTemplates[string(recipientType)+"/generic"]
	fallback.Name = r.titleCaser.String(strings.ReplaceAll(viewName, "-", " "))
	return fallback
}

// Preview renders a template against built-in sample data for the view,
// merged with caller overrides. Used by the template editor, never for
// live delivery.
func (r *Renderer) Preview(tmpl domain.NotificationTemplate, viewName string, overrides map[string]any) Rendered {
	sample := SampleData(viewName)
	for k, v := range overrides {
		sample[k] = v
	}
	return r.Render(tmpl, sample)
}

// substitute replaces {{key}} tokens present in vars and leaves
// unresolved tokens untouched.
func substitute(text string, vars map[string]string) string {
	return tokenPattern.ReplaceAllStringFunc(text, func(token string) string {
		key := strings.TrimSpace(strings.Trim(token, "{}"))
		if value, ok := vars[key]; ok {
			return value
		}
		return token
	})
}

// Flatten converts nested event data into scalar key -> value pairs with
// dotted paths for nested associative structures. Arrays of scalars keep
// their key and are comma-joined; arrays of composites are not flattened.
func Flatten(data map[string]any) map[string]string {
	flat := make(map[string]string)
	flattenInto(flat, "", data)
	return flat
}

func flattenInto(flat map[string]string, prefix string, data map[string]any) {
	for key, value := range data {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		switch v := value.(type) {
		case map[string]any:
			flattenInto(flat, path, v)
		case map[string]string:
			for k, s := range v {
				flat[path+"."+k] = s
			}
		case []any:
			if joined, ok := joinScalars(v); ok {
				flat[path] = joined
			}
		case []string:
			flat[path] = strings.Join(v, ", ")
		default:
			if s, ok := formatScalar(value); ok {
				flat[path] = s
			}
		}
	}
}

// joinScalars joins a slice whose elements are all scalar; composite
// elements make the whole slice unrepresentable as a template variable.
func joinScalars(values []any) (string, bool) {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		s, ok := formatScalar(v)
		if !ok {
			return "", false
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", "), true
}

func formatScalar(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case bool:
		return fmt.Sprintf("%t", v), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v), true
	case float32:
		return trimFloat(float64(v)), true
	case float64:
		return trimFloat(v), true
	case time.Time:
		return v.UTC().Format("Jan 2, 2006 15:04 UTC"), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}

// trimFloat formats floats without the noise of %v scientific notation
// while keeping cents-style decimals intact.
func trimFloat(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	if strings.HasSuffix(s, ".00") {
		return strings.TrimSuffix(s, ".00")
	}
	return s
}
