package zoho

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/gallery-backend/pkg/config"
	"github.com/angelmondragon/gallery-backend/pkg/logger"
)

func newTestClient(t *testing.T, accountID string, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	client, err := NewClient(context.Background(), config.ZohoConfig{
		ClientID:        "zoho-client",
		ClientSecret:    "zoho-secret",
		RefreshToken:    "refresh-token",
		FromEmail:       "orders@thelostandunfounds.com",
		AccountID:       accountID,
		AccountsBaseURL: server.URL,
		MailBaseURL:     server.URL,
	}, logg)
	require.NoError(t, err)
	return client
}

func TestSend(t *testing.T) {
	var sent map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "refresh-token", r.Form.Get("refresh_token"))
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "zoho-token", "expires_in": 3600})
	})
	mux.HandleFunc("/api/accounts/acct-1/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Zoho-oauthtoken zoho-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
		w.WriteHeader(http.StatusOK)
	})

	client := newTestClient(t, "acct-1", mux)
	err := client.Send(context.Background(), Message{
		To:      "buyer@example.com",
		Subject: "ARCHIVE ACCESS GRANTED",
		HTML:    "<p>your photos</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "orders@thelostandunfounds.com", sent["fromAddress"])
	assert.Equal(t, "buyer@example.com", sent["toAddress"])
	assert.Equal(t, "html", sent["mailFormat"])
}

func TestSendResolvesAccountID(t *testing.T) {
	accountLookups := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v2/token", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "zoho-token", "expires_in": 3600})
	})
	mux.HandleFunc("/api/accounts", func(w http.ResponseWriter, _ *http.Request) {
		accountLookups++
		_, _ = w.Write([]byte(`{"data":[{"accountId":"resolved-acct"}]}`))
	})
	mux.HandleFunc("/api/accounts/resolved-acct/messages", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	client := newTestClient(t, "", mux)
	require.NoError(t, client.Send(context.Background(), Message{To: "a@b.com", Subject: "s", HTML: "h"}))
	require.NoError(t, client.Send(context.Background(), Message{To: "a@b.com", Subject: "s", HTML: "h"}))
	assert.Equal(t, 1, accountLookups, "account id should be cached after first lookup")
}

func TestSendRequiresRecipient(t *testing.T) {
	client := newTestClient(t, "acct-1", http.NewServeMux())
	err := client.Send(context.Background(), Message{Subject: "s"})
	require.Error(t, err)
}

func TestNewClientValidation(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	_, err := NewClient(context.Background(), config.ZohoConfig{}, logg)
	require.Error(t, err)

	_, err = NewClient(context.Background(), config.ZohoConfig{
		ClientID: "id", ClientSecret: "secret", RefreshToken: "rt",
	}, logg)
	require.ErrorIs(t, err, errFromEmailRequired)
}
