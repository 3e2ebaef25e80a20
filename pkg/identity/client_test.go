package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PolicyWizard/pkg/token"
)

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
	}{
		{name: "json_string", body: `"abc.def.ghi"`, want: "abc.def.ghi"},
		{name: "json_object", body: `{"token":"abc.def.ghi"}`, want: "abc.def.ghi"},
		{name: "plain_text", body: "abc.def.ghi\n", want: "abc.def.ghi"},
		{name: "empty", body: "", wantErr: ErrEmptyToken},
		{name: "null", body: "null", wantErr: ErrEmptyToken},
		{name: "empty_object", body: `{}`, wantErr: ErrEmptyToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractToken([]byte(tt.body))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHTTPClient_Login(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_, _ = w.Write([]byte(`"signed-token"`))
	}))
	defer srv.Close()

	c, err := NewHTTPClient(srv.URL+"/api/login", 5*time.Second)
	require.NoError(t, err)

	got, err := c.Login(context.Background(), "alice@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "signed-token", got)
}

func TestHTTPClient_LoginUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := NewHTTPClient(srv.URL, 5*time.Second)
	require.NoError(t, err)

	_, err = c.Login(context.Background(), "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestMockClient_Login(t *testing.T) {
	require.NoError(t, token.InitWithSecret("test-secret", time.Hour))

	signed, err := MockClient{}.Login(context.Background(), "admin@example.com", "pw")
	require.NoError(t, err)

	role, err := token.DecodeRole(signed)
	require.NoError(t, err)
	assert.Equal(t, "admin", role)

	_, err = MockClient{}.Login(context.Background(), "", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}
