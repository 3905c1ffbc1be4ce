package statsapi

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	streamkit "github.com/goliatone/go-streamkit/components/streamkit"
)

func TestMockClientResolvesDemoData(t *testing.T) {
	client := NewMockClient(nil)
	ctx := context.Background()

	stats, err := client.ResolveVariables(ctx, streamkit.StatsRequest{
		Region:    "Europe",
		AccountID: DemoAccountID,
		Variables: []string{"total_kd", "unknown"},
	})
	require.NoError(t, err)
	assert.Equal(t, streamkit.Stats{"total_kd": "1.42"}, stats)

	text, err := client.ResolveTemplate(ctx, streamkit.GenerateCommandURL("https://x.test/v1/commands", DemoAccountID, "Europe", "KD {total_kd} {nope}", nil))
	require.NoError(t, err)
	assert.Equal(t, "KD 1.42 {nope}", text)
}

func TestMockClientErrorsAndVersions(t *testing.T) {
	client := NewMockClient(&MockData{})
	client.SetVersion("box", 2)
	versions, err := client.FetchWidgetVersions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"box": 2}, versions)

	client.SetError(errors.New("down"))
	_, err = client.FetchHeroes(context.Background())
	assert.Error(t, err)
}
