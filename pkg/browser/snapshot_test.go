package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSnapshotStripsNoise(t *testing.T) {
	raw := `<html><head>
		<title>Checkout</title>
		<script>alert("x")</script>
		<style>.a{color:red}</style>
	</head><body>
		<div id="main">
			<h1>Shipping</h1>
			<form action="/ship" method="post">
				<input name="zip" type="text" placeholder="ZIP code">
				<button type="submit">Continue</button>
			</form>
			<a href="/help" style="color:blue">Help</a>
		</div>
	</body></html>`

	snap, err := buildSnapshot(raw, 10000)
	require.NoError(t, err)

	assert.Equal(t, "Checkout", snap.Title)
	assert.False(t, snap.Truncated)

	assert.NotContains(t, snap.Content, "alert")
	assert.NotContains(t, snap.Content, "color:red")
	assert.NotContains(t, snap.Content, "style=")

	assert.Contains(t, snap.Content, `<input name="zip" type="text" placeholder="ZIP code">`)
	assert.Contains(t, snap.Content, `<form action="/ship" method="post">`)
	assert.Contains(t, snap.Content, `<a href="/help">`)
	assert.Contains(t, snap.Content, `id="main"`)
}

func TestBuildSnapshotTruncates(t *testing.T) {
	raw := "<html><body><p>" + strings.Repeat("lorem ipsum ", 500) + "</p></body></html>"

	snap, err := buildSnapshot(raw, 200)
	require.NoError(t, err)

	assert.True(t, snap.Truncated)
	assert.Less(t, len(snap.Content), 300)
	assert.Contains(t, snap.Content, "...")
}

func TestBuildSnapshotKeepsDataAttributes(t *testing.T) {
	raw := `<html><body><div data-testid="cart" class="wrap" onclick="boom()">2 items</div></body></html>`

	snap, err := buildSnapshot(raw, 10000)
	require.NoError(t, err)

	assert.Contains(t, snap.Content, `data-testid="cart"`)
	assert.Contains(t, snap.Content, `class="wrap"`)
	assert.NotContains(t, snap.Content, "onclick")
}

func TestBuildSnapshotMalformedHTML(t *testing.T) {
	// The parser is lenient; fragments still yield a snapshot.
	snap, err := buildSnapshot("<div><p>unclosed", 10000)
	require.NoError(t, err)
	assert.Contains(t, snap.Content, "unclosed")
}
