package termui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stocksearch/internal/widget"
)

func TestRenderTextItems(t *testing.T) {
	html, err := widget.RenderItems([]widget.Item{
		{Title: "Red car", DetailsURL: "https://stock.adobe.com/1", ThumbnailHTMLTag: `<img src="https://t.ftcdn.net/1.jpg">`, ThumbnailWidth: 110},
		{Title: "Blue car", DetailsURL: "https://stock.adobe.com/2"},
	})
	require.NoError(t, err)

	text, err := RenderText(html)
	require.NoError(t, err)
	assert.Equal(t, " 1. Red car\n    https://stock.adobe.com/1\n    thumbnail: https://t.ftcdn.net/1.jpg\n 2. Blue car\n    https://stock.adobe.com/2", text)
}

func TestRenderTextMessage(t *testing.T) {
	html, err := widget.RenderNoResults("zebra")
	require.NoError(t, err)

	text, err := RenderText(html)
	require.NoError(t, err)
	assert.Equal(t, "No results found for zebra", text)
}

func TestElementsPrintWhenRevealed(t *testing.T) {
	var out bytes.Buffer
	screen := NewScreen(&out)
	el := screen.Elements()

	el.SignIn.SetHidden(false)
	el.SignIn.SetHidden(false)
	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("Sign in required")))

	el.Results.SetHTML(`<p>No results found for <strong>x</strong></p>`)
	el.Results.SetHidden(false)
	assert.Contains(t, out.String(), "No results found for x")
	assert.Equal(t, 2*lineHeight, el.Body.ScrollHeight())
}

func TestSpinnerStartsAndStops(t *testing.T) {
	var out bytes.Buffer
	el := NewScreen(&out).Elements()

	el.Loading.SetHidden(false)
	el.Loading.SetHidden(true)
	el.Loading.SetHidden(true)
}
