package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/telekom/autofix-notifier/pkg/mail"
	"github.com/telekom/autofix-notifier/pkg/version"
)

func TestGetEnvString(t *testing.T) {
	t.Setenv("AUTOFIX_NOTIFIER_TEST_ENV", "custom-value")

	assert.Equal(t, "custom-value", getEnvString("AUTOFIX_NOTIFIER_TEST_ENV", "default"))
	assert.Equal(t, "fallback", getEnvString("AUTOFIX_NOTIFIER_UNKNOWN_ENV", "fallback"))
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("AUTOFIX_BOOL_INVALID", "sometimes")
	assert.True(t, getEnvBool("AUTOFIX_BOOL_INVALID", true), "expected fallback default when env value invalid")
	assert.False(t, getEnvBool("AUTOFIX_BOOL_MISSING", false), "expected default false when env missing")
}

func TestGetEnvBool_AllTrueVariants(t *testing.T) {
	for _, val := range []string{"true", "TRUE", "True", "1", "yes", "YES", "Yes"} {
		t.Run(val, func(t *testing.T) {
			t.Setenv("TEST_BOOL", val)
			assert.True(t, getEnvBool("TEST_BOOL", false), "expected true for %q", val)
		})
	}
}

func TestGetEnvBool_AllFalseVariants(t *testing.T) {
	for _, val := range []string{"false", "FALSE", "False", "0", "no", "NO", "No"} {
		t.Run(val, func(t *testing.T) {
			t.Setenv("TEST_BOOL", val)
			assert.False(t, getEnvBool("TEST_BOOL", true), "expected false for %q", val)
		})
	}
}

func TestDefaultOptions(t *testing.T) {
	t.Setenv("AUTOFIX_NOTIFIER_CONFIG_PATH", "/etc/notifier/config.yaml")
	t.Setenv("AUTOFIX_NOTIFIER_DEBUG", "yes")

	opts := DefaultOptions()
	assert.Equal(t, "/etc/notifier/config.yaml", opts.ConfigPath)
	assert.True(t, opts.Debug)
	assert.NotNil(t, opts.OutputWriter)
}

func runCommand(t *testing.T, configPath, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand(Options{
		ConfigPath:   configPath,
		OutputWriter: &out,
		InputReader:  strings.NewReader(stdin),
	})
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func writeConfig(t *testing.T, mailURL string) string {
	t.Helper()
	return writeFile(t, t.TempDir(), "config.yaml", fmt.Sprintf(`
mail:
  delivery: http
  timeout: 2s
properties:
  pacman.api.sendmail: %q
  pacman.auto.fix.orphan.resource.owner: orphans@example.com
  pacman.auto.fix.mail.cc.to: cc@example.com
  pacman.auto.fix.mail.from: autofix@example.com
  pacman.autofix.policy.url.path: https://kb.example.com/${POLICY_ID}
  pacman.auto.warning.mail.subject.p1: Warning for p1
  pacman.auto.fix.mail.subject.p1: Fixed p1
  pacman.autofix.fix.notify.p1: Removed ${RESOURCE_ID}
  pacman.auto.fix.mail.template.columns.p1: Resource Id,Region
`, mailURL))
}

type mailService struct {
	mu        sync.Mutex
	envelopes []mail.Envelope
	status    int
}

func (m *mailService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var env mail.Envelope
	_ = json.NewDecoder(r.Body).Decode(&env)
	m.mu.Lock()
	m.envelopes = append(m.envelopes, env)
	status := m.status
	m.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}

func TestVersionCommand(t *testing.T) {
	origVersion, origCommit, origDate := version.Version, version.GitCommit, version.BuildDate
	defer func() {
		version.Version, version.GitCommit, version.BuildDate = origVersion, origCommit, origDate
	}()
	version.Version = "v1.2.3"
	version.GitCommit = "abc123"
	version.BuildDate = "2026-01-17T15:00:00Z"

	t.Run("default output format", func(t *testing.T) {
		out, err := runCommand(t, "/does/not/exist.yaml", "", "version")
		require.NoError(t, err)
		assert.Contains(t, out, "autofix-notifier v1.2.3 (commit: abc123, built: 2026-01-17T15:00:00Z")
	})

	t.Run("json output format", func(t *testing.T) {
		out, err := runCommand(t, "", "", "version", "-o", "json")
		require.NoError(t, err)
		var info version.BuildInfo
		require.NoError(t, json.Unmarshal([]byte(out), &info))
		assert.Equal(t, "v1.2.3", info.Version)
	})

	t.Run("yaml output format", func(t *testing.T) {
		out, err := runCommand(t, "", "", "version", "--output", "yaml")
		require.NoError(t, err)
		var decoded map[string]any
		require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
		assert.Equal(t, "abc123", decoded["gitCommit"])
	})

	t.Run("unsupported output format", func(t *testing.T) {
		_, err := runCommand(t, "", "", "version", "-o", "table")
		assert.Error(t, err)
	})
}

func TestMissingConfigFails(t *testing.T) {
	_, err := runCommand(t, filepath.Join(t.TempDir(), "missing.yaml"), "{}", "render")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.yaml")
}

func TestRenderCommand(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1/unused")
	stdin := `{"policyParams":{"policyId":"p1"},"targetType":"s3","transactions":[{"resourceId":"b-1","region":"eu-west-1"},{"resourceId":"b-2"}]}`

	out, err := runCommand(t, cfg, stdin, "render")
	require.NoError(t, err)
	assert.Contains(t, out, "Total AutoFixs Applied : 2")
	assert.Contains(t, out, "Removed b-1, b-2, ")
	assert.Contains(t, out, "Resource Type : s3")
	assert.Contains(t, out, "eu-west-1")
}

func TestRenderCommandRejectsMissingPolicy(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1/unused")
	_, err := runCommand(t, cfg, `{"policyParams":{}}`, "render")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policyId")
}

func TestSendAutoFixCommand(t *testing.T) {
	svc := &mailService{}
	srv := httptest.NewServer(svc)
	defer srv.Close()
	cfg := writeConfig(t, srv.URL)

	reqFile := writeFile(t, t.TempDir(), "req.json", `{
		"policyParams": {"policyId": "p1"},
		"owner": {"name": "Jane", "emailId": "jane@example.com"},
		"resourceId": "i-1",
		"action": "EMAIL",
		"annotations": {"accountname": "sandbox"}
	}`)

	out, err := runCommand(t, cfg, "", "send", "autofix", "-f", reqFile)
	require.NoError(t, err)
	assert.Contains(t, out, "sent EMAIL notification for i-1")

	require.Len(t, svc.envelopes, 1)
	env := svc.envelopes[0]
	assert.Equal(t, []string{"jane@example.com", "cc@example.com"}, env.To)
	assert.Equal(t, "(Sandbox) : Warning for p1", env.Subject)
	assert.Equal(t, "autofix@example.com", env.From)
	assert.NotEmpty(t, env.MailBodyAsString)
	assert.Equal(t, "https://kb.example.com/p1", env.PlaceholderValues["POLICY_URL"])
}

func TestSendAutoFixCommandInvalidAction(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1/unused")
	_, err := runCommand(t, cfg, `{"policyParams":{"policyId":"p1"},"action":"ARCHIVE"}`, "send", "autofix")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown autofix action")
}

func TestSendCommonFixCommand(t *testing.T) {
	svc := &mailService{}
	srv := httptest.NewServer(svc)
	defer srv.Close()
	cfg := writeConfig(t, srv.URL)

	stdin := `{"policyParams":{"policyId":"p1"},"targetType":"s3","transactions":[{"resourceId":"b-1"}]}`
	out, err := runCommand(t, cfg, stdin, "send", "common-fix")
	require.NoError(t, err)
	assert.Contains(t, out, "sent common fix digest for 1 resources")

	require.Len(t, svc.envelopes, 1)
	env := svc.envelopes[0]
	assert.Equal(t, []string{"cc@example.com"}, env.To)
	assert.Equal(t, "Fixed p1", env.Subject)
	assert.Empty(t, env.PlaceholderValues)
	assert.Contains(t, env.MailBodyAsString, "b-1")
}

func TestSendCommonFixCommandDeliveryFailure(t *testing.T) {
	svc := &mailService{status: http.StatusInternalServerError}
	srv := httptest.NewServer(svc)
	defer srv.Close()
	cfg := writeConfig(t, srv.URL)

	stdin := `{"policyParams":{"policyId":"p1"},"transactions":[{"resourceId":"b-1"}]}`
	_, err := runCommand(t, cfg, stdin, "send", "common-fix")
	require.ErrorIs(t, err, mail.ErrDeliveryFailed)
}

func TestReadJSON(t *testing.T) {
	var out map[string]string
	require.NoError(t, readJSON(strings.NewReader(`{"a":"b"}`), "-", &out))
	assert.Equal(t, "b", out["a"])

	assert.Error(t, readJSON(strings.NewReader(`{`), "", &out))
	assert.Error(t, readJSON(nil, filepath.Join(t.TempDir(), "nope.json"), &out))
}
