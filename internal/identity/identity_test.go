package identity

import (
	"context"
	"encoding/base64"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

func fakeJWT(payload string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"RS256"}`)) + "." + enc.EncodeToString([]byte(payload)) + ".sig"
}

func TestClientIDFromToken(t *testing.T) {
	assert.Equal(t, "my-app", ClientIDFromToken(fakeJWT(`{"client_id":"my-app","type":"access_token"}`)))
	assert.Equal(t, "", ClientIDFromToken("opaque"))
	assert.Equal(t, "", ClientIDFromToken("a.!!!.c"))
}

func TestIMSValidate(t *testing.T) {
	token := fakeJWT(`{"client_id":"my-app"}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/ims/validate_token/v1", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "access_token", r.PostForm.Get("type"))
		assert.Equal(t, "my-app", r.PostForm.Get("client_id"))
		if r.PostForm.Get("token") == token {
			_, _ = w.Write([]byte(`{"valid":true,"token":{}}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"valid":false,"error":"bad_token"}`))
	}))
	defer srv.Close()

	log, _ := test.NewNullLogger()
	v := NewIMS(srv.URL, "", 0, log)

	res, err := v.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = v.Validate(context.Background(), fakeJWT(`{"client_id":"my-app","n":1}`))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "bad_token", res.Reason)
}

func TestIMSEmptyTokenSkipsNetwork(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	defer srv.Close()

	log, _ := test.NewNullLogger()
	res, err := NewIMS(srv.URL, "id", 0, log).Validate(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Zero(t, calls)
}

func TestIMSServerErrorIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	log, _ := test.NewNullLogger()
	_, err := NewIMS(srv.URL, "id", 0, log).Validate(context.Background(), "tok")
	assert.Error(t, err)
}

func writeWhitelist(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "whitelist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestWhitelist(t *testing.T) {
	wl, err := LoadWhitelist(writeWhitelist(t, `
tokens:
  - token: good-token
    user: alice
    role: editor
`))
	require.NoError(t, err)

	e, ok := wl.Lookup("good-token")
	require.True(t, ok)
	assert.Equal(t, "alice", e.User)

	res, err := wl.Validate(context.Background(), "good-token")
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = wl.Validate(context.Background(), "other")
	require.NoError(t, err)
	assert.False(t, res.Valid)

	res, err = wl.Validate(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestWhitelistRejectsEmptyToken(t *testing.T) {
	_, err := LoadWhitelist(writeWhitelist(t, "tokens:\n  - user: bob\n"))
	assert.Error(t, err)
}

func startTokenServer(t *testing.T, v Validator) *GRPCValidator {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	log, _ := test.NewNullLogger()

	s := grpc.NewServer()
	RegisterServer(s, v, log)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewGRPCValidator(conn)
}

func TestGRPCValidatorRoundTrip(t *testing.T) {
	wl := &Whitelist{Tokens: []TokenEntry{{Token: "good-token", User: "alice"}}}
	client := startTokenServer(t, wl)

	res, err := client.Validate(context.Background(), "good-token")
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = client.Validate(context.Background(), "bad-token")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Reason, "whitelist")
}

func TestGRPCValidatorPropagatesFailure(t *testing.T) {
	client := startTokenServer(t, ValidatorFunc(func(context.Context, string) (Result, error) {
		return Result{}, errors.New("provider down")
	}))

	_, err := client.Validate(context.Background(), "tok")
	assert.Error(t, err)
}
