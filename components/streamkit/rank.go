package streamkit

import (
	"strconv"
	"strings"
)

// RankPalette maps badge tiers to colours.
type RankPalette struct {
	colors map[int]string
}

// NewRankPalette indexes ranks by tier. Ranks without a colour are skipped.
func NewRankPalette(ranks []Rank) *RankPalette {
	p := &RankPalette{colors: make(map[int]string, len(ranks))}
	for _, r := range ranks {
		if r.Color == "" {
			continue
		}
		if _, exists := p.colors[r.Tier]; exists {
			continue
		}
		p.colors[r.Tier] = r.Color
	}
	return p
}

// TierForBadge buckets a badge level into its tier, rounding toward negative infinity.
func TierForBadge(badge int) int {
	tier := badge / 10
	if badge%10 != 0 && badge < 0 {
		tier--
	}
	return tier
}

// ColorForBadge returns the colour of the tier the badge level belongs to.
// A zero or unparsable badge has no colour.
func (p *RankPalette) ColorForBadge(badge string) (string, bool) {
	if p == nil {
		return "", false
	}
	level, err := strconv.Atoi(strings.TrimSpace(badge))
	if err != nil || level == 0 {
		return "", false
	}
	color, ok := p.colors[TierForBadge(level)]
	return color, ok
}

// RawFontColor picks the raw widget font colour: the rank colour when enabled
// and resolvable, otherwise the configured colour.
func RawFontColor(opts RawOptions, stats Stats, palette *RankPalette) string {
	fallback := opts.FontColor
	if fallback == "" {
		fallback = DefaultRawFontColor
	}
	if !opts.FontColorLikeRank {
		return fallback
	}
	badge, ok := stats.Value(VariableRankBadge)
	if !ok {
		return fallback
	}
	if color, ok := palette.ColorForBadge(badge); ok {
		return color
	}
	return fallback
}
