package allocator

import (
	"fmt"
	"strings"
)

// maxSlugLen bounds the feature slug so branch names stay readable.
const maxSlugLen = 30

// BranchName builds the thread branch name: {prefix}/{slug}. The name is
// shared by the worktrees of every repository in the thread, and may be
// reused by a later thread once this one is torn down.
func BranchName(prefix, feature string) string {
	return fmt.Sprintf("%s/%s", prefix, slugify(feature))
}

// slugify creates a branch-safe slug from a feature name.
func slugify(text string) string {
	slug := strings.ToLower(strings.TrimSpace(text))
	slug = strings.ReplaceAll(slug, " ", "-")

	// Keep only alphanumerics and dashes.
	var result strings.Builder
	for _, r := range slug {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	slug = result.String()

	// Collapse runs of dashes left behind by stripped characters.
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	slug = strings.Trim(slug, "-")

	if len(slug) > maxSlugLen {
		slug = strings.Trim(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		slug = "thread"
	}
	return slug
}
