package streamkit

import (
	"sort"
	"strconv"
	"strings"
)

// ThemeSelection carries the resolved tokens for a widget theme.
type ThemeSelection struct {
	Name   Theme
	Class  string
	Tokens map[string]string
}

var (
	darkTokens = map[string]string{
		"widget-bg":     "rgba(26, 27, 30, var(--bg-opacity))",
		"text-header":   "rgba(255, 255, 255, 0.9)",
		"text-label":    "rgba(255, 255, 255, 0.6)",
		"text-value":    "#ffffff",
		"stat-bg":       "#25262b",
		"stat-bg-hover": "#2c2e33",
		"branding-text": "rgba(255, 255, 255, 0.4)",
		"live-badge-bg": "#dc2626",
		"win-color":     "#22c55e",
		"loss-color":    "#ef4444",
	}
	themeTokens = map[Theme]map[string]string{
		ThemeDefault: darkTokens,
		ThemeDark:    darkTokens,
		ThemeLight: {
			"widget-bg":     "rgba(255, 255, 255, var(--bg-opacity))",
			"text-header":   "#111827",
			"text-label":    "#6b7280",
			"text-value":    "#111827",
			"stat-bg":       "#f9fafb",
			"stat-bg-hover": "#f3f4f6",
			"branding-text": "#9ca3af",
			"live-badge-bg": "#dc2626",
			"win-color":     "#16a34a",
			"loss-color":    "#dc2626",
		},
		ThemeGlass: {
			"widget-bg":     "rgba(0, 0, 0, calc(0.1 * var(--bg-opacity)))",
			"text-header":   "#ffffff",
			"text-label":    "rgba(255, 255, 255, 0.7)",
			"text-value":    "#ffffff",
			"stat-bg":       "rgba(255, 255, 255, 0.05)",
			"stat-bg-hover": "rgba(255, 255, 255, 0.1)",
			"branding-text": "rgba(255, 255, 255, 0.5)",
			"live-badge-bg": "#dc2626",
			"win-color":     "#22c55e",
			"loss-color":    "#ef4444",
			"backdrop":      "blur(8px)",
		},
	}
)

// ResolveTheme returns the token set for theme with the background opacity applied.
// Opacity is clamped to 0..100.
func ResolveTheme(theme Theme, opacity int) *ThemeSelection {
	theme = ParseTheme(string(theme))
	if opacity < 0 {
		opacity = 0
	}
	if opacity > 100 {
		opacity = 100
	}
	base := themeTokens[theme]
	tokens := make(map[string]string, len(base)+1)
	for key, value := range base {
		tokens[key] = value
	}
	tokens["bg-opacity"] = strconv.FormatFloat(float64(opacity)/100, 'f', -1, 64)
	return &ThemeSelection{
		Name:   theme,
		Class:  "theme-" + string(theme),
		Tokens: tokens,
	}
}

// CSSVariables normalizes token keys into CSS variable names.
func (theme *ThemeSelection) CSSVariables() map[string]string {
	if theme == nil || len(theme.Tokens) == 0 {
		return nil
	}
	vars := make(map[string]string, len(theme.Tokens))
	for key, value := range theme.Tokens {
		name := normalizeCSSVariable(key)
		if name == "" {
			continue
		}
		vars[name] = value
	}
	return vars
}

// CSSVariablesInline renders the CSS variable map as a style string, sorted by name.
func (theme *ThemeSelection) CSSVariablesInline() string {
	vars := theme.CSSVariables()
	if len(vars) == 0 {
		return ""
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	var builder strings.Builder
	for _, name := range names {
		value := vars[name]
		if value == "" {
			continue
		}
		builder.WriteString(name)
		builder.WriteString(": ")
		builder.WriteString(value)
		builder.WriteString("; ")
	}
	return strings.TrimSpace(builder.String())
}

func normalizeCSSVariable(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "--") {
		return name
	}
	return "--" + name
}
