package service

import "strings"

const countsCacheKey = "projects:threat_model_counts"

func listCacheKey(projectID string, status string) string {
	key := "project:" + projectID + ":threat_models"
	if status != "" {
		key += ":" + status
	}
	return key
}

// projectCachePattern matches every cached read of one project.
func projectCachePattern(projectID string) string {
	return "project:" + escapeGlob(projectID) + ":*"
}

// existence checks live outside the project pattern so writes keep them warm
func projectExistsCacheKey(projectID string) string {
	return "projects:exists:" + projectID
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
