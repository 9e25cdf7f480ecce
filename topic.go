package loom

import "strings"

const (
	topicSuffix           = "lifecycle"
	topicSeparator        = "-"
	emptySpaceReplacement = "_"
)

// Topic returns the lifecycle stream topic for a workflow kind.
func Topic(workflowKind string) string {
	kind := strings.ReplaceAll(workflowKind, " ", emptySpaceReplacement)
	return strings.Join([]string{kind, topicSuffix}, topicSeparator)
}
