package streamkit

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// CommandURLPlaceholder is shown in chat bot snippets until a URL can be built.
const CommandURLPlaceholder = "https://your-command-url"

var placeholderPattern = regexp.MustCompile(`\{([^}]+)\}`)

// TemplateVariables returns the placeholder names in order of appearance.
func TemplateVariables(template string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// UsedExtraArgs returns the extra argument names required by the catalog
// variables referenced in template. Unknown placeholders contribute nothing.
func UsedExtraArgs(template string, catalog *Catalog) []string {
	seen := make(map[string]struct{})
	args := []string{}
	for _, name := range TemplateVariables(template) {
		v, ok := catalog.Lookup(name)
		if !ok {
			continue
		}
		for _, arg := range v.ExtraArgs {
			if _, dup := seen[arg]; dup {
				continue
			}
			seen[arg] = struct{}{}
			args = append(args, arg)
		}
	}
	return args
}

// ExtraArgs holds every extra argument value entered so far, including values
// for arguments the current template no longer references.
type ExtraArgs map[string]string

// Only returns the non-empty values for the given argument names.
func (a ExtraArgs) Only(names []string) map[string]string {
	out := make(map[string]string, len(names))
	for _, name := range names {
		if v := a[name]; v != "" {
			out[name] = v
		}
	}
	return out
}

// Clone copies the map.
func (a ExtraArgs) Clone() ExtraArgs {
	out := make(ExtraArgs, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// GenerateCommandURL builds the resolve URL for a chat command template.
// It returns "" when accountID or region is empty. Empty extra values are omitted.
func GenerateCommandURL(baseURL, accountID, region, template string, extraArgs map[string]string) string {
	if strings.TrimSpace(accountID) == "" || strings.TrimSpace(region) == "" {
		return ""
	}
	base := strings.TrimRight(baseURL, "/")
	u, err := url.Parse(base + "/" + url.PathEscape(region) + "/" + url.PathEscape(accountID) + "/resolve")
	if err != nil {
		return ""
	}
	q := url.Values{}
	if template != "" {
		q.Set("template", template)
	}
	for name, value := range extraArgs {
		if value == "" {
			continue
		}
		q.Set(name, value)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// InsertVariable inserts "{name}" at the rune offset cursor and returns the new
// text plus the cursor position just after the insertion.
func InsertVariable(template string, cursor int, name string) (string, int) {
	runes := []rune(template)
	if cursor < 0 || cursor > len(runes) {
		cursor = len(runes)
	}
	token := []rune("{" + name + "}")
	out := make([]rune, 0, len(runes)+len(token))
	out = append(out, runes[:cursor]...)
	out = append(out, token...)
	out = append(out, runes[cursor:]...)
	return string(out), cursor + len(token)
}

// ChatBotCommand is a ready-to-paste snippet for a chat bot.
type ChatBotCommand struct {
	Bot     string `json:"bot"`
	Command string `json:"command"`
}

// ChatBotCommands wraps the command URL in the fetch syntax of each supported bot.
func ChatBotCommands(commandURL string) []ChatBotCommand {
	if commandURL == "" {
		commandURL = CommandURLPlaceholder
	}
	return []ChatBotCommand{
		{Bot: "StreamElements", Command: "$(customapi " + commandURL + ")"},
		{Bot: "Fossabot", Command: "$(customapi " + commandURL + ")"},
		{Bot: "Nightbot", Command: "$(urlfetch " + commandURL + ")"},
	}
}

// CommandRequest is the builder input for a chat command.
type CommandRequest struct {
	AccountID string    `json:"account_id"`
	Region    string    `json:"region"`
	Template  string    `json:"template"`
	ExtraArgs ExtraArgs `json:"extra_args,omitempty"`
}

// CommandResult is the builder output for a chat command.
type CommandResult struct {
	URL       string           `json:"url"`
	ExtraArgs []string         `json:"extra_args"`
	ChatBots  []ChatBotCommand `json:"chat_bots"`
}

// BuildCommand resolves the URL and snippets for req against catalog.
// Only referenced, non-empty extra arguments reach the URL.
func BuildCommand(baseURL string, req CommandRequest, catalog *Catalog) CommandResult {
	used := UsedExtraArgs(req.Template, catalog)
	commandURL := GenerateCommandURL(baseURL, NormalizeAccountID(req.AccountID), req.Region, req.Template, req.ExtraArgs.Only(used))
	return CommandResult{
		URL:       commandURL,
		ExtraArgs: used,
		ChatBots:  ChatBotCommands(commandURL),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
