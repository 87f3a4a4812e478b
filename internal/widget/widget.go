// Package widget is the search widget embedded in a host application. It
// gets an access token from the host, submits searches to the stock-search
// action and renders the results into the element handles it is given.
package widget

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// HeightDelay leaves rendered images time to load before the host is told
// the new content height.
const HeightDelay = time.Second

var ErrNotReady = errors.New("widget: search is not available")

type State int

const (
	Unauthenticated State = iota
	Ready
	Loading
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Ready:
		return "ready"
	case Loading:
		return "loading"
	default:
		return "unknown"
	}
}

// Element is a handle on one piece of the widget's markup.
type Element interface {
	SetHidden(hidden bool)
	SetHTML(html string)
}

// Body reports the rendered height of the widget document.
type Body interface {
	ScrollHeight() int
}

// Elements are the handles the widget drives. All are required.
type Elements struct {
	SignIn  Element
	Search  Element
	Loading Element
	Results Element
	Body    Body
}

type Options struct {
	// ActionURL is the stock-search endpoint from the widget configuration.
	ActionURL string
	// HostName is the host the widget is served from. "localhost" turns on
	// extra action logging.
	HostName    string
	HeightDelay time.Duration
	HTTPClient  *http.Client
	Log         *logrus.Logger
}

// Widget holds one widget lifetime: its host, its elements and the token
// handed over by the host.
type Widget struct {
	host   Host
	el     Elements
	client *ActionClient
	delay  time.Duration
	log    *logrus.Entry

	mu     sync.Mutex
	state  State
	token  string
	seq    uint64
	cancel context.CancelFunc
	timer  *time.Timer
}

func New(host Host, el Elements, opts Options) *Widget {
	if opts.HeightDelay <= 0 {
		opts.HeightDelay = HeightDelay
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Widget{
		host:   host,
		el:     el,
		client: NewActionClient(opts.ActionURL, opts.HTTPClient, opts.HostName == "localhost"),
		delay:  opts.HeightDelay,
		log:    opts.Log.WithField("component", "widget"),
		state:  Unauthenticated,
	}
}

func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Load asks the host for a token and shows either the search form or the
// sign-in prompt.
func (w *Widget) Load(ctx context.Context) error {
	user, err := w.host.GetIMSAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("get access token: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if user.Token == "" {
		w.showSignIn()
		return nil
	}
	w.token = user.Token
	w.state = Ready
	w.el.SignIn.SetHidden(true)
	w.el.Search.SetHidden(false)
	return nil
}

// ClickSignIn hands sign-in to the host. The widget never authenticates.
func (w *Widget) ClickSignIn(ctx context.Context) error {
	return w.host.SignIn(ctx)
}

// Submit runs one search with the form fields. A newer Submit cancels an
// older one still in flight; the superseded call returns context.Canceled
// and leaves the elements alone.
func (w *Widget) Submit(ctx context.Context, form url.Values) error {
	w.mu.Lock()
	if w.token == "" {
		w.mu.Unlock()
		return ErrNotReady
	}
	if w.cancel != nil {
		w.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w.seq++
	seq := w.seq
	w.cancel = cancel
	token := w.token

	w.state = Loading
	w.el.Loading.SetHidden(false)
	w.el.Results.SetHidden(true)
	w.mu.Unlock()

	status, body, err := w.client.Search(ctx, token, form)

	w.mu.Lock()
	if seq != w.seq {
		w.mu.Unlock()
		return context.Canceled
	}
	w.cancel = nil

	if err != nil {
		w.log.WithError(err).Warn("search failed")
		w.showResults(failureHTML)
		w.mu.Unlock()
		return err
	}

	files := gjson.GetBytes(body, "files")
	switch {
	case files.IsArray():
		html, rerr := w.renderFiles(files, form.Get("words"))
		if rerr != nil {
			w.log.WithError(rerr).Error("render failed")
			html = failureHTML
		}
		w.showResults(html)
		w.mu.Unlock()
		return nil

	case status == http.StatusForbidden:
		w.token = ""
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		w.showSignIn()
		w.el.Loading.SetHidden(true)
		w.el.Search.SetHidden(true)
		w.el.Results.SetHidden(true)
		w.mu.Unlock()
		w.setParentHeight(ctx)
		return nil

	default:
		w.log.WithField("status", status).Warn("search returned no files")
		w.showResults(failureHTML)
		w.mu.Unlock()
		return nil
	}
}

// Close stops a pending height notification and any search in flight.
func (w *Widget) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *Widget) renderFiles(files gjson.Result, term string) (string, error) {
	items := itemsFrom(files)
	if len(items) == 0 {
		return RenderNoResults(term)
	}
	return RenderItems(items)
}

// showResults must be called with mu held.
func (w *Widget) showResults(html string) {
	w.el.Results.SetHTML(html)
	w.el.Loading.SetHidden(true)
	w.el.Results.SetHidden(false)
	w.state = Ready

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, func() {
		w.setParentHeight(context.Background())
	})
}

// showSignIn must be called with mu held.
func (w *Widget) showSignIn() {
	w.state = Unauthenticated
	w.el.SignIn.SetHidden(false)
}

func (w *Widget) setParentHeight(ctx context.Context) {
	px := fmt.Sprintf("%dpx", w.el.Body.ScrollHeight())
	if err := w.host.SetHeight(context.WithoutCancel(ctx), px); err != nil {
		w.log.WithError(err).Warn("setHeight failed")
	}
}
