package guardrail_test

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/guardrail"
)

func TestApplyShortTextUntouched(t *testing.T) {
	v := guardrail.Apply("hello world", guardrail.Policy{TokenLimit: 100})
	require.Equal(t, "hello world", v.Text)
	require.True(t, v.Clean())
}

func TestApplyTruncation(t *testing.T) {
	tests := []struct {
		name       string
		tokenLimit int
		textLen    int
		wantLen    int
	}{
		{name: "over budget", tokenLimit: 100, textLen: 1000, wantLen: 400},
		{name: "exactly budget", tokenLimit: 100, textLen: 400, wantLen: 400},
		{name: "minimum budget floor", tokenLimit: 10, textLen: 500, wantLen: 256},
		{name: "zero token limit uses floor", tokenLimit: 0, textLen: 300, wantLen: 256},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			text := strings.Repeat("a", tc.textLen)
			v := guardrail.Apply(text, guardrail.Policy{TokenLimit: tc.tokenLimit})

			require.Len(t, v.Text, tc.wantLen)
			if tc.textLen > tc.wantLen {
				require.Equal(t, []string{
					fmt.Sprintf("truncated:%d->%d", tc.textLen, tc.wantLen),
				}, v.Issues)
			} else {
				require.True(t, v.Clean())
			}
		})
	}
}

func TestApplyTruncationRuneBoundary(t *testing.T) {
	// 86 three-byte runes are 258 bytes; the 256-byte floor lands inside
	// the 86th rune, which must be dropped whole.
	text := strings.Repeat("日", 86)
	v := guardrail.Apply(text, guardrail.Policy{TokenLimit: 10})

	require.True(t, utf8.ValidString(v.Text))
	require.Len(t, v.Text, 255)
	require.Equal(t, []string{"truncated:258->256"}, v.Issues)
}

func TestApplyContentFilter(t *testing.T) {
	policy := guardrail.Policy{TokenLimit: 4000, ContentFilter: true}

	v := guardrail.Apply("run rm -rf / to clean up", policy)
	require.Equal(t, "run [REDACTED] / to clean up", v.Text)
	require.Equal(t, []string{guardrail.IssueContentBlocked}, v.Issues)
}

func TestApplyContentFilterCaseInsensitive(t *testing.T) {
	policy := guardrail.Policy{TokenLimit: 4000, ContentFilter: true}

	v := guardrail.Apply("drop table users; DROP TABLE accounts;", policy)
	require.NotContains(t, strings.ToLower(v.Text), "drop table")
	// One issue regardless of match count.
	require.Equal(t, []string{guardrail.IssueContentBlocked}, v.Issues)
}

func TestApplyContentFilterDisabled(t *testing.T) {
	v := guardrail.Apply("rm -rf /", guardrail.Policy{TokenLimit: 4000})
	require.Equal(t, "rm -rf /", v.Text)
	require.True(t, v.Clean())
}

func TestApplyIdempotent(t *testing.T) {
	policy := guardrail.Policy{TokenLimit: 4000, ContentFilter: true}

	input := "key: AKIA1234 then rm -rf /tmp and BEGIN RSA PRIVATE KEY"
	once := guardrail.Apply(input, policy)
	twice := guardrail.Apply(once.Text, policy)

	require.Equal(t, once.Text, twice.Text)
	require.True(t, twice.Clean())
}

func TestApplyDeterministic(t *testing.T) {
	policy := guardrail.Policy{TokenLimit: 50, ContentFilter: true}
	input := strings.Repeat("rm -rf / ", 100)

	a := guardrail.Apply(input, policy)
	b := guardrail.Apply(input, policy)
	require.Equal(t, a, b)
}

func TestApplyCustomDenylist(t *testing.T) {
	policy := guardrail.Policy{
		TokenLimit:    4000,
		ContentFilter: true,
		Denylist:      []string{"secret-sauce"},
	}

	v := guardrail.Apply("the Secret-Sauce is rm -rf", policy)
	require.Equal(t, "the [REDACTED] is rm -rf", v.Text)
	require.Equal(t, []string{guardrail.IssueContentBlocked}, v.Issues)
}
