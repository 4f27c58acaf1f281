package notification

import (
	"strconv"
	"strings"

	"github.com/telekom/autofix-notifier/pkg/autofix"
	"github.com/telekom/autofix-notifier/pkg/config"
)

// CommonFixBody is the data the batch digest templates render.
type CommonFixBody struct {
	Columns        []string
	Resources      []autofix.Transaction
	Name           string
	ResourceType   string
	AutoFixApplied string
	PostFixMessage string
	Banner         string
	CloudType      string
	PolicyURL      string
}

// NewCommonFixBody collects the digest data for a batch of applied fixes.
func NewCommonFixBody(r config.Resolver, batch []autofix.Transaction, params autofix.PolicyParams,
	owner *autofix.ResourceOwner,
) CommonFixBody {
	policyID := params.PolicyID()

	name := config.LookupPolicy(r, policyID, config.FragmentSilentFixAdmin)
	if name == "" {
		name = owner.DisplayName()
	}

	postFix := config.LookupPolicy(r, policyID, config.FragmentFixMessage)
	postFix = strings.ReplaceAll(postFix, "${"+PlaceholderResourceID+"}", joinResourceIDs(batch))

	return CommonFixBody{
		Columns:        config.SplitList(config.LookupPolicy(r, policyID, config.FragmentTemplateColumns)),
		Resources:      batch,
		Name:           "Hello " + name,
		ResourceType:   " Resource Type : " + params.TargetType(),
		AutoFixApplied: "Total AutoFixs Applied : " + strconv.Itoa(len(batch)),
		PostFixMessage: postFix,
		Banner:         config.Lookup(r, config.EmailBanner),
		CloudType:      CloudType(params),
		PolicyURL:      PolicyKnowledgeBaseURL(r, params),
	}
}

// FormatCommonFixBody renders the HTML digest for a batch of applied fixes.
// Render errors are returned unchanged.
func (d *Dispatcher) FormatCommonFixBody(batch []autofix.Transaction, params autofix.PolicyParams,
	owner *autofix.ResourceOwner,
) (string, error) {
	body := NewCommonFixBody(d.resolver, batch, params, owner)
	return d.templates.Render(d.commonFixTemplate(params.PolicyID()), body)
}
