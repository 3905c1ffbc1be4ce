package streamkit

import (
	"embed"
	"io"

	template "github.com/goliatone/go-template"
)

// Template names rendered by the widget route.
const (
	TemplateBox     = "box.html"
	TemplateRaw     = "raw.html"
	TemplateMessage = "message.html"
)

// Renderer describes the template renderer contract needed by the controller.
type Renderer interface {
	Render(name string, data any, out ...io.Writer) (string, error)
}

//go:embed templates/*.html
var embeddedTemplates embed.FS

// NewTemplateRenderer creates a go-template renderer backed by the embedded templates.
func NewTemplateRenderer() (Renderer, error) {
	return template.NewRenderer(
		template.WithFS(embeddedTemplates),
		template.WithBaseDir("templates"),
		template.WithExtension(".html"),
	)
}

// LiveOptions tells widget pages where to receive live events.
type LiveOptions struct {
	EventsPath string
	Interval   int64
}

// BoxTemplateData flattens a BoxView into template-friendly values.
func BoxTemplateData(view BoxView, live LiveOptions) map[string]any {
	stats := make([]map[string]any, 0, len(view.Stats))
	for _, stat := range view.Stats {
		stats = append(stats, map[string]any{
			"variable": stat.Variable,
			"label":    stat.Label,
			"value":    stat.Display(),
			"image":    stat.IsImage(),
		})
	}
	matches := make([]map[string]any, 0, len(view.Matches))
	for _, m := range view.Matches {
		matches = append(matches, map[string]any{
			"match_id":  m.MatchID,
			"hero_icon": m.HeroIcon,
			"win":       m.Win,
		})
	}
	themeClass := ""
	if view.Theme != nil {
		themeClass = view.Theme.Class
	}
	return map[string]any{
		"widget_key":    view.WidgetKey,
		"widget_type":   string(WidgetTypeBox),
		"theme_class":   themeClass,
		"style":         view.Style,
		"show_header":   view.ShowHeader,
		"header":        view.Header,
		"stats":         stats,
		"show_matches":  view.ShowMatches,
		"matches":       matches,
		"show_branding": view.ShowBranding,
		"loading":       view.Loading,
		"events_path":   live.EventsPath,
		"refresh_ms":    live.Interval,
	}
}

// RawTemplateData flattens a RawView into template-friendly values.
func RawTemplateData(view RawView, live LiveOptions) map[string]any {
	return map[string]any{
		"widget_key":  view.WidgetKey,
		"widget_type": string(WidgetTypeRaw),
		"has_value":   view.HasValue,
		"text":        view.Text,
		"image_url":   view.ImageURL,
		"variable":    view.Config.Raw.Variable,
		"font_color":  view.FontColor,
		"loading":     view.Loading,
		"events_path": live.EventsPath,
		"refresh_ms":  live.Interval,
	}
}

// MessageTemplateData is used for advisory pages such as missing input.
func MessageTemplateData(message string) map[string]any {
	return map[string]any{"message": message}
}
