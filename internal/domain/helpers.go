package domain

import "strings"

// NormalizeTag strips the quotes S3 puts around entity tags.
func NormalizeTag(tag string) string {
	return strings.ReplaceAll(tag, `"`, "")
}
