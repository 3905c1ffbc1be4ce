package streamkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnakeToPretty(t *testing.T) {
	cases := map[string]string{
		"leaderboard_place": "Leaderboard Place",
		"total_kd":          "Total Kd",
		"hero":              "Hero",
		"hero_KDA":          "Hero KDA",
		"winsToday":         "WinsToday",
		"matches_today_v2":  "Matches Today V2",
		"":                  "",
	}
	for in, want := range cases {
		assert.Equal(t, want, SnakeToPretty(in), in)
	}
}

func TestImageVariableSuffix(t *testing.T) {
	assert.True(t, Variable{Name: "hero_icon_img"}.IsImage())
	assert.False(t, Variable{Name: "hero_icon"}.IsImage())
	assert.False(t, Variable{Name: "img_count"}.IsImage())
}

func TestNormalizeAccountID(t *testing.T) {
	cases := map[string]string{
		"12345":             "12345",
		" 12345 ":           "12345",
		"76561197960287930": "22202",
		"[U:1:22202]":       "22202",
		"STEAM_0:0:11101":   "22202",
		"STEAM_1:1:11101":   "22203",
		"not-an-id":         "not-an-id",
		"":                  "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeAccountID(in), in)
	}
}
