package guard

import "strings"

// bannedPhrases are matched as case-insensitive substrings. The list is a
// fixed constant of the gateway; changing it requires a redeploy, not a
// retrain.
var bannedPhrases = []string{
	"ignore previous instructions",
	"disregard the above",
	"system override",
	"drop table",
	"sudo rm -rf /",
}

// matchBannedPhrase returns the first banned phrase contained in the prompt.
func matchBannedPhrase(prompt string) (string, bool) {
	lowered := strings.ToLower(prompt)
	for _, phrase := range bannedPhrases {
		if strings.Contains(lowered, phrase) {
			return phrase, true
		}
	}
	return "", false
}
