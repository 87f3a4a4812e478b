// Package termui renders the search widget's elements on a terminal.
package termui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/schollz/progressbar/v3"

	"stocksearch/internal/widget"
)

// lineHeight converts printed lines into the pixel height reported to the
// host page.
const lineHeight = 20

// Screen owns the terminal output shared by all elements.
type Screen struct {
	mu    sync.Mutex
	out   io.Writer
	lines int
}

func NewScreen(out io.Writer) *Screen {
	return &Screen{out: out}
}

func (s *Screen) println(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, text)
	s.lines += strings.Count(text, "\n") + 1
}

// ScrollHeight is the height of everything printed so far.
func (s *Screen) ScrollHeight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines * lineHeight
}

// Elements builds the widget handles drawn on this screen.
func (s *Screen) Elements() widget.Elements {
	return widget.Elements{
		SignIn:  &textElement{screen: s, text: "Sign in required. Type :signin to sign in through the host.", hidden: true},
		Search:  &textElement{screen: s, text: "Type search words and press enter (:quit to leave).", hidden: true},
		Loading: &spinner{screen: s, hidden: true},
		Results: &resultsElement{screen: s, hidden: true},
		Body:    s,
	}
}

// textElement prints a fixed prompt each time it becomes visible.
type textElement struct {
	screen *Screen
	text   string

	mu     sync.Mutex
	hidden bool
}

func (e *textElement) SetHidden(hidden bool) {
	e.mu.Lock()
	wasHidden := e.hidden
	e.hidden = hidden
	e.mu.Unlock()
	if wasHidden && !hidden {
		e.screen.println(e.text)
	}
}

func (e *textElement) SetHTML(string) {}

// resultsElement prints its markup as text when revealed.
type resultsElement struct {
	screen *Screen

	mu     sync.Mutex
	hidden bool
	html   string
}

func (e *resultsElement) SetHTML(html string) {
	e.mu.Lock()
	e.html = html
	e.mu.Unlock()
}

func (e *resultsElement) SetHidden(hidden bool) {
	e.mu.Lock()
	wasHidden := e.hidden
	e.hidden = hidden
	html := e.html
	e.mu.Unlock()
	if !wasHidden || hidden {
		return
	}
	text, err := RenderText(html)
	if err != nil {
		text = html
	}
	e.screen.println(text)
}

// spinner shows an indeterminate progress bar while visible.
type spinner struct {
	screen *Screen

	mu     sync.Mutex
	hidden bool
	bar    *progressbar.ProgressBar
	stop   chan struct{}
}

func (s *spinner) SetHTML(string) {}

func (s *spinner) SetHidden(hidden bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hidden == hidden {
		return
	}
	s.hidden = hidden

	if !hidden {
		s.bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(s.screen.out),
			progressbar.OptionSetDescription("searching"),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionClearOnFinish(),
		)
		s.stop = make(chan struct{})
		go tick(s.bar, s.stop)
		return
	}

	close(s.stop)
	_ = s.bar.Finish()
	s.bar = nil
}

func tick(bar *progressbar.ProgressBar, stop <-chan struct{}) {
	t := time.NewTicker(100 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			_ = bar.Add(1)
		}
	}
}

// RenderText turns result markup into terminal lines: one block per asset
// with its caption and details link, or the plain message text.
func RenderText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	items := doc.Find("div")
	if items.Length() == 0 {
		return strings.TrimSpace(doc.Text()), nil
	}

	var b strings.Builder
	items.Each(func(i int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Find("p").Text())
		href, _ := sel.Find("a").Attr("href")
		thumb, _ := sel.Find("img").Attr("src")

		fmt.Fprintf(&b, "%2d. %s\n", i+1, title)
		if href != "" {
			fmt.Fprintf(&b, "    %s\n", href)
		}
		if thumb != "" {
			fmt.Fprintf(&b, "    thumbnail: %s\n", thumb)
		}
	})
	return strings.TrimRight(b.String(), "\n"), nil
}
