package streamkit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveThemeAppliesOpacity(t *testing.T) {
	theme := ResolveTheme(ThemeGlass, 45)
	assert.Equal(t, ThemeGlass, theme.Name)
	assert.Equal(t, "theme-glass", theme.Class)
	assert.Equal(t, "0.45", theme.CSSVariables()["--bg-opacity"])

	assert.Equal(t, "1", ResolveTheme(ThemeDark, 250).Tokens["bg-opacity"])
	assert.Equal(t, "0", ResolveTheme(ThemeDark, -3).Tokens["bg-opacity"])
}

func TestResolveThemeUnknownFallsBack(t *testing.T) {
	theme := ResolveTheme(Theme("neon"), 100)
	assert.Equal(t, ThemeDefault, theme.Name)
}

func TestCSSVariablesInlineSorted(t *testing.T) {
	inline := ResolveTheme(ThemeLight, 100).CSSVariablesInline()
	assert.True(t, strings.HasPrefix(inline, "--bg-opacity: 1; "))
	assert.Contains(t, inline, "--bg-opacity: 1;")

	var nilTheme *ThemeSelection
	assert.Empty(t, nilTheme.CSSVariablesInline())
}
