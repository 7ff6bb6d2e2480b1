package docker

import "strings"

// parseStages splits a staged batch script into its logical stages. Each
// non-empty line that is not a comment is one stage command. Both `--`
// (batch-script style) and `#` comment markers are recognized.
func parseStages(script string) []string {
	var stages []string
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") || strings.HasPrefix(line, "#") {
			continue
		}
		stages = append(stages, line)
	}
	return stages
}
