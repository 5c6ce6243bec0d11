package threatcount

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCount(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{
			name: "three threat headings",
			text: "# Report\n## Threat: Spoofing\nbody\n## Threat: Tampering\nbody\n## Threat: Repudiation\n## Summary\n",
			want: 3,
		},
		{
			name: "numbered threat headings at level three",
			text: "### Threat 1: SQL injection\n### Threat 2: XSS\n",
			want: 2,
		},
		{
			name: "generic headings outside denylist",
			text: "## Overview\ntext\n## Credential stuffing\n## Insecure deserialization\n## Conclusion\n",
			want: 2,
		},
		{
			name: "only denylisted headings",
			text: "## Summary\n## 1. Introduction\n## Recommendations:\n## references ##\n",
			want: 0,
		},
		{
			name: "primary pattern wins over generic",
			text: "## Threat: Elevation of privilege\n## Session fixation\n## Open redirect\n",
			want: 1,
		},
		{
			name: "deeper headings are ignored by the fallback",
			text: "### Broken auth\n#### Weak TLS\n",
			want: 0,
		},
		{
			name: "plural threats label is not a threat heading",
			text: "## Threats: overview\n## Summary\n",
			want: 1,
		},
		{
			name: "empty",
			text: "",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Count(tt.text))
		})
	}
}
