package mail

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Masterminds/sprig/v3"

	"github.com/telekom/autofix-notifier/pkg/metrics"
)

// Template names known to the notifier.
const (
	TemplateWarning          = "autofix-user-notification-info"
	TemplateFixApplied       = "autofix-user-notification-action"
	TemplateExceptionExpiry  = "autofix-user-notification-exception-expiry"
	TemplateExemptionGranted = "autofix-user-notification-exemption-granted"
	TemplateCommonFix        = "autofix-user-notification-action-common"
	TemplateSilentFix        = "autofix-silent-autodelete-usernotification-info"
)

const templateSuffix = ".html"

// ErrTemplateNotFound is returned when neither the override directory nor the
// embedded set contains the requested template.
var ErrTemplateNotFound = errors.New("mail template not found")

//go:embed templates/*.html
var embeddedTemplates embed.FS

// TemplateStore resolves mail templates by logical name. Files in the
// override directory shadow the embedded defaults.
type TemplateStore struct {
	dir string

	mu     sync.Mutex
	parsed map[string]*template.Template
}

// NewTemplateStore creates a store. dir may be empty.
func NewTemplateStore(dir string) *TemplateStore {
	return &TemplateStore{dir: dir, parsed: map[string]*template.Template{}}
}

// Content returns the raw template body. Plain notification templates carry
// ${KEY} placeholders that the mail service fills in.
func (s *TemplateStore) Content(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		metrics.TemplateRenderErrors.WithLabelValues("invalid").Inc()
		return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}
	file := name + templateSuffix

	if s.dir != "" {
		raw, err := os.ReadFile(filepath.Join(s.dir, file))
		if err == nil {
			return string(raw), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			metrics.TemplateRenderErrors.WithLabelValues(name).Inc()
			return "", fmt.Errorf("failed to read template %s: %w", name, err)
		}
	}

	raw, err := embeddedTemplates.ReadFile("templates/" + file)
	if err != nil {
		metrics.TemplateRenderErrors.WithLabelValues(name).Inc()
		return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}
	return string(raw), nil
}

// Render executes the named template as an html/template with Sprig functions.
func (s *TemplateStore) Render(name string, data any) (string, error) {
	t, err := s.lookup(name)
	if err != nil {
		return "", err
	}
	var b bytes.Buffer
	if err := t.Execute(&b, data); err != nil {
		metrics.TemplateRenderErrors.WithLabelValues(name).Inc()
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return b.String(), nil
}

func (s *TemplateStore) lookup(name string) (*template.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.parsed[name]; ok {
		return t, nil
	}
	raw, err := s.Content(name)
	if err != nil {
		return nil, err
	}
	t, err := template.New(name).Funcs(sprig.HtmlFuncMap()).Parse(raw)
	if err != nil {
		metrics.TemplateRenderErrors.WithLabelValues(name).Inc()
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	s.parsed[name] = t
	return t, nil
}
