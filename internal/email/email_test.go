package email

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML("# New bounties\n\n- [Logo design](https://app.example/bounties/1)\n")
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>New bounties</h1>")
	assert.Contains(t, html, `<a href="https://app.example/bounties/1">Logo design</a>`)
}

func TestDisabledMailer(t *testing.T) {
	err := Disabled{}.Send(context.Background(), Message{To: "a@example.com"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, "Logo design", EscapeMarkdown("Logo design"))
	assert.Equal(t, `\*\*urgent\*\* fix\_this`, EscapeMarkdown("**urgent** fix_this"))
	assert.Equal(t, "line one \\# two", EscapeMarkdown("line one\n# two"))
}

func TestEscapedTitleRendersLiterally(t *testing.T) {
	title := "[Claim your prize](https://evil.example) <img src=x onerror=alert(1)>"
	html, err := RenderHTML("Your application to **" + EscapeMarkdown(title) + "** was accepted.\n")
	require.NoError(t, err)
	assert.NotContains(t, html, "<a ")
	assert.NotContains(t, html, "<img")
	assert.Contains(t, html, "[Claim your prize](https://evil.example)")
	assert.Contains(t, html, "&lt;img src=x onerror=alert(1)&gt;")
}
