package mail

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/autofix-notifier/pkg/config"
	"github.com/telekom/autofix-notifier/pkg/system"
)

func TestHTTPTransport_Deliver(t *testing.T) {
	var (
		gotBody        []byte
		gotContentType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	props := config.NewProperties(map[string]string{string(config.EmailServiceURL): srv.URL})
	transport := NewHTTPTransport(props, time.Second, system.NewTestLogger())

	env := Envelope{
		From:              "noreply@example.com",
		To:                []string{"owner@example.com", "cc@example.com"},
		Subject:           "AutoFix warning",
		MailBodyAsString:  "<p>${NAME}</p>",
		PlaceholderValues: map[string]string{"NAME": "Alice"},
	}
	require.NoError(t, transport.Deliver(context.Background(), env))

	assert.Equal(t, "application/json", gotContentType)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Equal(t, "", decoded["attachmentUrl"])
	assert.Equal(t, "noreply@example.com", decoded["from"])
	assert.Equal(t, "<p>${NAME}</p>", decoded["mailBodyAsString"])
	assert.Equal(t, "AutoFix warning", decoded["subject"])
	assert.Equal(t, []interface{}{"owner@example.com", "cc@example.com"}, decoded["to"])
	assert.Equal(t, map[string]interface{}{"NAME": "Alice"}, decoded["placeholderValues"])
	assert.Contains(t, string(gotBody), "<p>", "HTML must not be escaped")
}

func TestHTTPTransport_DeliverErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "mailbox unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	props := config.NewProperties(map[string]string{string(config.EmailServiceURL): srv.URL})
	transport := NewHTTPTransport(props, time.Second, system.NewTestLogger())

	err := transport.Deliver(context.Background(), Envelope{To: []string{"a@example.com"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeliveryFailed))
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPTransport_DeliverMissingURL(t *testing.T) {
	transport := NewHTTPTransport(config.NewProperties(nil), 0, system.NewTestLogger())
	err := transport.Deliver(context.Background(), Envelope{To: []string{"a@example.com"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(config.EmailServiceURL))
}

func TestHTTPTransport_DeliverUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	props := config.NewProperties(map[string]string{string(config.EmailServiceURL): url})
	transport := NewHTTPTransport(props, time.Second, system.NewTestLogger())
	assert.Error(t, transport.Deliver(context.Background(), Envelope{To: []string{"a@example.com"}}))
}

func TestEnvelopeEncode(t *testing.T) {
	raw, err := Envelope{MailBodyAsString: "<b>a & b</b>"}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"attachmentUrl":"","from":"","mailBodyAsString":"<b>a & b</b>","placeholderValues":{},"subject":"","to":[]}`, string(raw))
	assert.Contains(t, string(raw), "<b>a & b</b>")
}

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		values map[string]string
		want   string
	}{
		{"single", "id ${RESOURCE_ID}", map[string]string{"RESOURCE_ID": "i-1"}, "id i-1"},
		{"repeated", "${A}-${A}", map[string]string{"A": "x"}, "x-x"},
		{"unknown kept", "${A} ${B}", map[string]string{"A": "x"}, "x ${B}"},
		{"no values", "${A}", nil, "${A}"},
		{"dollar without braces", "cost $5 ${A}", map[string]string{"A": "x"}, "cost $5 x"},
		{"empty value", "[${A}]", map[string]string{"A": ""}, "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Substitute(tt.text, tt.values))
		})
	}
}
