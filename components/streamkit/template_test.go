package streamkit

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCommandsBase = "https://api.example.com/v1/commands"

func TestUsedExtraArgsDeduplicatesInOrder(t *testing.T) {
	catalog := NewCatalog(sampleVariables())

	args := UsedExtraArgs("{hero_kills} kills, {hero_wins} wins, {unknown}", catalog)
	assert.Equal(t, []string{"hero_name"}, args)

	assert.Empty(t, UsedExtraArgs("no placeholders here", catalog))
	assert.Empty(t, UsedExtraArgs("{leaderboard_place}", catalog))
}

func TestGenerateCommandURL(t *testing.T) {
	got := GenerateCommandURL(testCommandsBase, "12345", "Europe", "Rank {leaderboard_rank}", nil)
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "/v1/commands/Europe/12345/resolve", u.Path)
	assert.Equal(t, "Rank {leaderboard_rank}", u.Query().Get("template"))
}

func TestGenerateCommandURLRequiresAccountAndRegion(t *testing.T) {
	assert.Empty(t, GenerateCommandURL(testCommandsBase, "", "Europe", "x", nil))
	assert.Empty(t, GenerateCommandURL(testCommandsBase, "1", "", "x", nil))
}

func TestGenerateCommandURLSkipsEmptyArgs(t *testing.T) {
	got := GenerateCommandURL(testCommandsBase, "1", "Asia", "", map[string]string{"hero_name": "Haze", "empty": ""})
	u, err := url.Parse(got)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "Haze", q.Get("hero_name"))
	assert.False(t, q.Has("empty"))
	assert.False(t, q.Has("template"))
}

func TestBuildCommandDropsStaleExtraArgs(t *testing.T) {
	catalog := NewCatalog(sampleVariables())
	req := CommandRequest{
		AccountID: "76561197960287930",
		Region:    "Europe",
		Template:  "{total_kd}",
		ExtraArgs: ExtraArgs{"hero_name": "Haze"},
	}
	result := BuildCommand(testCommandsBase, req, catalog)

	u, err := url.Parse(result.URL)
	require.NoError(t, err)
	assert.Equal(t, "/v1/commands/Europe/22202/resolve", u.Path)
	assert.False(t, u.Query().Has("hero_name"))
	assert.Empty(t, result.ExtraArgs)

	req.Template = "{hero_kills}"
	result = BuildCommand(testCommandsBase, req, catalog)
	u, err = url.Parse(result.URL)
	require.NoError(t, err)
	assert.Equal(t, "Haze", u.Query().Get("hero_name"))
	assert.Equal(t, []string{"hero_name"}, result.ExtraArgs)
}

func TestInsertVariable(t *testing.T) {
	text, cursor := InsertVariable("Rank: ", 6, "leaderboard_rank")
	assert.Equal(t, "Rank: {leaderboard_rank}", text)
	assert.Equal(t, 24, cursor)

	text, cursor = InsertVariable("ab", 1, "x")
	assert.Equal(t, "a{x}b", text)
	assert.Equal(t, 4, cursor)

	text, _ = InsertVariable("ab", 99, "x")
	assert.Equal(t, "ab{x}", text)
}

func TestChatBotCommands(t *testing.T) {
	cmds := ChatBotCommands("")
	require.Len(t, cmds, 3)
	assert.Equal(t, "$(customapi https://your-command-url)", cmds[0].Command)
	assert.Equal(t, "Nightbot", cmds[2].Bot)
	assert.Equal(t, "$(urlfetch https://x.test/r)", ChatBotCommands("https://x.test/r")[2].Command)
}
