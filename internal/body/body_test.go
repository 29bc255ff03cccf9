// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package body

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alertHTML = `<html><body>
<h3><a href="https://scholar.google.com/scholar_url?url=https://pub.example.org/article/10.1234/abcd.5678/full&amp;hl=en&amp;sa=X">First</a></h3>
<a href="https://scholar.google.com/scholar_alerts?view_op=list_alerts">Manage alerts</a>
<h3><a href="https://scholar.google.com/scholar_url?url=https://files.example.org/paper.pdf&amp;hl=en">Second</a></h3>
<a href="https://scholar.google.com/scholar_share?hl=en">Share</a>
</body></html>`

func TestLinksFiltersAndOrders(t *testing.T) {
	got := Links(alertHTML)
	require.Len(t, got, 2)
	assert.Equal(t, "https://scholar.google.com/scholar_url?url=https://pub.example.org/article/10.1234/abcd.5678/full&hl=en&sa=X", got[0])
	assert.Equal(t, "https://scholar.google.com/scholar_url?url=https://files.example.org/paper.pdf&hl=en", got[1])
}

func TestLinksCountMatchesMarkedAnchors(t *testing.T) {
	for _, tc := range []struct{ k, m int }{{0, 0}, {3, 0}, {5, 5}, {9, 4}} {
		t.Run(fmt.Sprintf("k%d_m%d", tc.k, tc.m), func(t *testing.T) {
			var b strings.Builder
			var want []string
			for i := 0; i < tc.k; i++ {
				if i < tc.m {
					href := fmt.Sprintf("/scholar_url?url=https://p.example/%d", i)
					want = append(want, href)
					fmt.Fprintf(&b, `<a href="%s">x</a>`, href)
				} else {
					fmt.Fprintf(&b, `<a href="/other/%d">y</a>`, i)
				}
			}
			got := Links(b.String())
			assert.Len(t, got, tc.m)
			if tc.m > 0 {
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestLinksNoMarker(t *testing.T) {
	assert.Empty(t, Links(`<p>plain text, <a href="https://example.org">nothing</a></p>`))
	assert.Empty(t, Links(""))
}

func TestParseMalformed(t *testing.T) {
	res := Parse(`<<a href="/scholar_url?url=x">ok</a><div <a href=`)
	assert.NoError(t, res.Err)
	assert.Equal(t, []string{"/scholar_url?url=x"}, res.Links)
}
