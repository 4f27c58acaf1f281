package mail

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct{ values map[string]string }

func (r row) Field(c string) string { return r.values[c] }

func TestContentEmbeddedTemplates(t *testing.T) {
	store := NewTemplateStore("")
	for _, name := range []string{
		TemplateWarning, TemplateFixApplied, TemplateExceptionExpiry,
		TemplateExemptionGranted, TemplateCommonFix, TemplateSilentFix,
	} {
		t.Run(name, func(t *testing.T) {
			content, err := store.Content(name)
			require.NoError(t, err)
			assert.NotEmpty(t, content)
		})
	}
}

func TestContentPlainTemplatesCarryPlaceholders(t *testing.T) {
	content, err := NewTemplateStore("").Content(TemplateWarning)
	require.NoError(t, err)
	for _, key := range []string{"${NAME}", "${RESOURCE_ID}", "${POLICY_VIOLATION_MESSAGE}", "${AUTOFIX_WARNING_MESSAGE}", "${POLICY_URL}", "${EMAIL_BANNER}"} {
		assert.Contains(t, content, key)
	}
}

func TestContentNotFound(t *testing.T) {
	store := NewTemplateStore("")
	for _, name := range []string{"", "does-not-exist", "../templates/autofix-user-notification-info", "a/b"} {
		_, err := store.Content(name)
		assert.True(t, errors.Is(err, ErrTemplateNotFound), "name %q", name)
	}
}

func TestContentOverrideDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, TemplateWarning+".html"), []byte("custom ${NAME}"), 0o600))
	store := NewTemplateStore(dir)

	content, err := store.Content(TemplateWarning)
	require.NoError(t, err)
	assert.Equal(t, "custom ${NAME}", content)

	// falls back to embedded when the override is missing
	content, err = store.Content(TemplateFixApplied)
	require.NoError(t, err)
	assert.Contains(t, content, "${AUTOFIX_POST_FIX_MESSAGE}")
}

func TestRenderBatchTemplate(t *testing.T) {
	store := NewTemplateStore("")
	data := map[string]interface{}{
		"Banner":         "Cloud Governance",
		"CloudType":      "AWS",
		"Name":           "Hello Bob",
		"PostFixMessage": "Fixed: i-1, i-2, ",
		"ResourceType":   " Resource Type : ec2",
		"AutoFixApplied": "Total AutoFixs Applied : 2",
		"PolicyURL":      "https://kb.example.com/policy-1",
		"Columns":        []string{"resourceId", "region"},
		"Resources": []row{
			{values: map[string]string{"resourceId": "i-1", "region": "us-east-1"}},
			{values: map[string]string{"resourceId": "i-2"}},
		},
	}

	for _, name := range []string{TemplateCommonFix, TemplateSilentFix} {
		t.Run(name, func(t *testing.T) {
			out, err := store.Render(name, data)
			require.NoError(t, err)
			assert.Contains(t, out, "Hello Bob")
			assert.Contains(t, out, "Total AutoFixs Applied : 2")
			assert.Contains(t, out, "Resource Type : ec2")
			assert.Contains(t, out, "Fixed: i-1, i-2, ")
			assert.Contains(t, out, "i-1")
			assert.Contains(t, out, "us-east-1")
			assert.Contains(t, out, "ResourceId")
			assert.Contains(t, out, ">-<", "missing column value renders the sprig default")
			assert.Contains(t, out, "https://kb.example.com/policy-1")
		})
	}
}

func TestRenderEscapesHTML(t *testing.T) {
	out, err := NewTemplateStore("").Render(TemplateCommonFix, map[string]interface{}{
		"Name": "Hello <script>alert(1)</script>",
	})
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
}

func TestRenderParseError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, TemplateCommonFix+".html"), []byte("{{ .Broken "), 0o600))

	_, err := NewTemplateStore(dir).Render(TemplateCommonFix, nil)
	assert.Error(t, err)
}

func TestRenderExecuteError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.html"), []byte("{{ .Missing.Field }}"), 0o600))

	_, err := NewTemplateStore(dir).Render("broken", struct{}{})
	assert.Error(t, err)
}
