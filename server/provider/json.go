package provider

import (
	"regexp"
	"strings"
)

var (
	fencedJSON = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")
	bracedJSON = regexp.MustCompile(`\{[\s\S]*\}`)
)

// ExtractJSON pulls the JSON payload out of a model reply: a fenced code
// block, else the outermost brace span, else the trimmed reply itself.
func ExtractJSON(content string) string {
	if m := fencedJSON.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	if m := bracedJSON.FindString(content); m != "" {
		return m
	}
	return strings.TrimSpace(content)
}
