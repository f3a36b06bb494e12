package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHTML(t *testing.T) {
	t.Run("renders links and paragraphs", func(t *testing.T) {
		html, err := renderHTML("Hello,\n\nFollow [this link](https://example.com/reset-password?token=abc).")
		require.NoError(t, err)
		assert.Contains(t, html, "<p>Hello,</p>")
		assert.Contains(t, html, `<a href="https://example.com/reset-password?token=abc"`)
	})

	t.Run("drops raw html", func(t *testing.T) {
		html, err := renderHTML("<script>alert(1)</script>\n\n[x](javascript:alert(1))")
		require.NoError(t, err)
		assert.NotContains(t, html, "<script")
		assert.NotContains(t, html, "javascript:")
	})
}
