package widget

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"stocksearch/internal/hostrpc"
)

// ConnectTimeout bounds the handshake with the host page.
const ConnectTimeout = 5 * time.Second

// User is what the host returns for getIMSAccessToken. A zero Token means
// nobody is signed in.
type User struct {
	Token string `json:"token"`
}

// Host is the embedding page as seen from the widget.
type Host interface {
	GetIMSAccessToken(ctx context.Context) (User, error)
	SetHeight(ctx context.Context, px string) error
	SignIn(ctx context.Context) error
}

// RemoteHost reaches the host over a hostrpc channel.
type RemoteHost struct {
	conn *hostrpc.Conn
}

// ConnectToParent opens the channel to the host page at url, exposing the
// onShow and onHide callbacks the host may invoke.
func ConnectToParent(ctx context.Context, url string, log *logrus.Logger) (*RemoteHost, error) {
	conn, err := hostrpc.Dial(ctx, url, hostrpc.Options{
		Methods: hostrpc.Methods{
			"onShow": hostrpc.NoOp,
			"onHide": hostrpc.NoOp,
		},
		Timeout: ConnectTimeout,
		Log:     log,
	})
	if err != nil {
		return nil, err
	}
	return &RemoteHost{conn: conn}, nil
}

func (h *RemoteHost) GetIMSAccessToken(ctx context.Context) (User, error) {
	var u *User
	if err := h.conn.Call(ctx, "getIMSAccessToken", &u); err != nil {
		return User{}, err
	}
	if u == nil {
		return User{}, nil
	}
	return *u, nil
}

func (h *RemoteHost) SetHeight(ctx context.Context, px string) error {
	return h.conn.Call(ctx, "setHeight", nil, px)
}

func (h *RemoteHost) SignIn(ctx context.Context) error {
	return h.conn.Call(ctx, "signIn", nil)
}

func (h *RemoteHost) Done() <-chan struct{} { return h.conn.Done() }

func (h *RemoteHost) Close() error { return h.conn.Close() }
