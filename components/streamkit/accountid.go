package streamkit

import (
	"regexp"
	"strconv"
	"strings"
)

// steamID64Base is the offset between a SteamID64 and its 32-bit account id.
const steamID64Base uint64 = 76561197960265728

var (
	steamID3Pattern = regexp.MustCompile(`^\[U:1:(\d+)\]$`)
	steamID2Pattern = regexp.MustCompile(`^STEAM_[0-5]:([01]):(\d+)$`)
)

// NormalizeAccountID converts the common Steam id notations into the 32-bit
// account id used by the stats API. Unrecognised input is returned trimmed.
func NormalizeAccountID(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" {
		return ""
	}
	if m := steamID3Pattern.FindStringSubmatch(id); m != nil {
		return m[1]
	}
	if m := steamID2Pattern.FindStringSubmatch(strings.ToUpper(id)); m != nil {
		y, _ := strconv.ParseUint(m[1], 10, 64)
		z, err := strconv.ParseUint(m[2], 10, 64)
		if err != nil {
			return id
		}
		return strconv.FormatUint(z*2+y, 10)
	}
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return id
	}
	if n > steamID64Base {
		return strconv.FormatUint(n-steamID64Base, 10)
	}
	return id
}
