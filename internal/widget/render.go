package widget

import (
	"bytes"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/tidwall/gjson"
)

// Item is one asset from the action response, read verbatim.
type Item struct {
	Title            string
	DetailsURL       string
	ThumbnailHTMLTag string
	ThumbnailWidth   int64
}

type renderedItem struct {
	Item
	Thumbnail template.HTML
}

var (
	resultsTmpl = template.Must(template.New("results").Parse(`{{range .}}
<div style="max-width: {{.ThumbnailWidth}}px;">
  <a target="_blank" href="{{.DetailsURL}}">{{.Thumbnail}}</a>
  <p class="spectrum-Body spectrum-Body--sizeS">{{.Title}}</p>
</div>
{{end}}`))

	noResultsTmpl = template.Must(template.New("empty").Parse(
		`<p class="spectrum-Body spectrum-Body--sizeM">No results found for <strong>{{.}}</strong></p>`))

	failureHTML = `<p class="spectrum-Body spectrum-Body--sizeM">Search failed, please try again</p>`
)

// thumbnailPolicy keeps the upstream <img> tag and nothing else.
var thumbnailPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	p.AllowImages()
	p.AllowAttrs("title").OnElements("img")
	return p
}()

func itemsFrom(files gjson.Result) []Item {
	arr := files.Array()
	items := make([]Item, 0, len(arr))
	for _, f := range arr {
		items = append(items, Item{
			Title:            f.Get("title").String(),
			DetailsURL:       f.Get("details_url").String(),
			ThumbnailHTMLTag: f.Get("thumbnail_html_tag").String(),
			ThumbnailWidth:   f.Get("thumbnail_width").Int(),
		})
	}
	return items
}

// RenderItems renders linked thumbnails with captions.
func RenderItems(items []Item) (string, error) {
	rendered := make([]renderedItem, 0, len(items))
	for _, it := range items {
		rendered = append(rendered, renderedItem{
			Item:      it,
			Thumbnail: template.HTML(thumbnailPolicy.Sanitize(it.ThumbnailHTMLTag)),
		})
	}
	var buf bytes.Buffer
	if err := resultsTmpl.Execute(&buf, rendered); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderNoResults renders the empty-result message echoing term.
func RenderNoResults(term string) (string, error) {
	var buf bytes.Buffer
	if err := noResultsTmpl.Execute(&buf, term); err != nil {
		return "", err
	}
	return buf.String(), nil
}
