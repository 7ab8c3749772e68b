package email

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names, one file per name under templates/.
const (
	TemplateWelcome          = "welcome"
	TemplateSwapRequest      = "swap_request"
	TemplateStatusUpdate     = "status_update"
	TemplateMessage          = "message"
	TemplateFeedbackReminder = "feedback_reminder"
	TemplateWeeklyDigest     = "weekly_digest"
)

var pageNames = []string{
	TemplateWelcome,
	TemplateSwapRequest,
	TemplateStatusUpdate,
	TemplateMessage,
	TemplateFeedbackReminder,
	TemplateWeeklyDigest,
}

// Renderer executes the page templates inside the shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses the embedded layout and pages.
func NewRenderer() (*Renderer, error) {
	base, err := template.ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parse base template: %w", err)
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone base template: %w", err)
		}
		if _, err := t.ParseFS(templateFS, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages}, nil
}

// MustRenderer panics when the embedded templates fail to parse.
func MustRenderer() *Renderer {
	r, err := NewRenderer()
	if err != nil {
		panic(err)
	}
	return r
}

// Render returns the HTML body for a page.
func (r *Renderer) Render(name string, data interface{}) (string, error) {
	t, ok := r.pages[name]
	if !ok {
		return "", fmt.Errorf("unknown email template %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

var (
	styleBlock = regexp.MustCompile(`(?s)<style.*?</style>|<title.*?</title>`)
	tags       = regexp.MustCompile(`<[^>]*>`)
	blankLines = regexp.MustCompile(`\n\s*\n+`)
)

// PlainText derives the text alternative from an HTML body.
func PlainText(body string) string {
	text := styleBlock.ReplaceAllString(body, "")
	text = tags.ReplaceAllString(text, "")
	text = html.UnescapeString(text)

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	text = blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(text)
}
