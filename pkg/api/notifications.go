package api

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/autofix-notifier/pkg/apiresponses"
	"github.com/telekom/autofix-notifier/pkg/autofix"
	"github.com/telekom/autofix-notifier/pkg/notification"
	"github.com/telekom/autofix-notifier/pkg/system"
)

// Notifier is the subset of the dispatcher the API needs.
type Notifier interface {
	SendPlainTextMail(ctx context.Context, recipients []string, from, subject string,
		placeholders map[string]string, templateName string) error
	SendAutoFixNotification(ctx context.Context, req notification.AutoFixRequest) error
	SendCommonFixNotification(ctx context.Context, batch []autofix.Transaction,
		params autofix.PolicyParams, owner *autofix.ResourceOwner, targetType string) error
}

// AutoFixRequest is the body of POST /api/notifications/autofix.
type AutoFixRequest struct {
	PolicyParams autofix.PolicyParams   `json:"policyParams" binding:"required"`
	Owner        *autofix.ResourceOwner `json:"owner"`
	TargetType   string                 `json:"targetType"`
	ResourceID   string                 `json:"resourceId"`
	ExpiringTime string                 `json:"expiringTime"`
	Action       string                 `json:"action" binding:"required"`
	Transactions []autofix.Transaction  `json:"transactions"`
	Annotations  map[string]string      `json:"annotations"`
}

// ToNotification validates the request and converts it for the dispatcher.
func (r AutoFixRequest) ToNotification() (notification.AutoFixRequest, error) {
	if r.PolicyParams.PolicyID() == "" {
		return notification.AutoFixRequest{}, errors.New("policyParams.policyId is required")
	}
	action, err := autofix.ParseAction(r.Action)
	if err != nil {
		return notification.AutoFixRequest{}, err
	}
	return notification.AutoFixRequest{
		PolicyParams: r.PolicyParams,
		Owner:        r.Owner,
		TargetType:   r.TargetType,
		ResourceID:   r.ResourceID,
		ExpiringTime: r.ExpiringTime,
		Action:       action,
		Transactions: r.Transactions,
		Annotations:  r.Annotations,
	}, nil
}

// Validate checks the fields binding tags cannot express.
func (r CommonFixRequest) Validate() error {
	if r.PolicyParams.PolicyID() == "" {
		return errors.New("policyParams.policyId is required")
	}
	return nil
}

// CommonFixRequest is the body of POST /api/notifications/common-fix.
type CommonFixRequest struct {
	PolicyParams autofix.PolicyParams   `json:"policyParams" binding:"required"`
	Owner        *autofix.ResourceOwner `json:"owner"`
	TargetType   string                 `json:"targetType"`
	Transactions []autofix.Transaction  `json:"transactions"`
}

// PlainRequest is the body of POST /api/notifications/plain.
type PlainRequest struct {
	Recipients   []string          `json:"to"`
	From         string            `json:"from"`
	Subject      string            `json:"subject"`
	Placeholders map[string]string `json:"placeholderValues"`
	TemplateName string            `json:"templateName" binding:"required"`
}

type NotificationController struct {
	notifier Notifier
	log      *zap.SugaredLogger
}

func NewNotificationController(notifier Notifier, log *zap.SugaredLogger) *NotificationController {
	return &NotificationController{notifier: notifier, log: log.Named("notifications")}
}

func (NotificationController) BasePath() string {
	return "notifications"
}

func (nc *NotificationController) Register(rg *gin.RouterGroup) error {
	rg.POST("/autofix", nc.handleAutoFix)
	rg.POST("/common-fix", nc.handleCommonFix)
	rg.POST("/plain", nc.handlePlain)
	return nil
}

func (NotificationController) Handlers() []gin.HandlerFunc {
	return []gin.HandlerFunc{}
}

func (nc *NotificationController) handleAutoFix(c *gin.Context) {
	log := system.GetReqLogger(c, nc.log)

	var body AutoFixRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiresponses.RespondBadRequestWithDetails(c, "invalid autofix notification", err.Error())
		return
	}
	req, err := body.ToNotification()
	if err != nil {
		apiresponses.RespondBadRequest(c, err.Error())
		return
	}

	log.Infow("Dispatching autofix notification", system.PolicyFields(req.PolicyParams.PolicyID(), req.ResourceID)...)
	if err := nc.notifier.SendAutoFixNotification(c.Request.Context(), req); err != nil {
		apiresponses.RespondDispatchError(c, "send autofix notification", err, log)
		return
	}
	apiresponses.RespondSent(c)
}

func (nc *NotificationController) handleCommonFix(c *gin.Context) {
	log := system.GetReqLogger(c, nc.log)

	var body CommonFixRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiresponses.RespondBadRequestWithDetails(c, "invalid common fix notification", err.Error())
		return
	}
	if err := body.Validate(); err != nil {
		apiresponses.RespondBadRequest(c, err.Error())
		return
	}

	log.Infow("Dispatching common fix notification", "policyId", body.PolicyParams.PolicyID(), "resources", len(body.Transactions))
	err := nc.notifier.SendCommonFixNotification(c.Request.Context(), body.Transactions, body.PolicyParams, body.Owner, body.TargetType)
	if err != nil {
		apiresponses.RespondDispatchError(c, "send common fix notification", err, log)
		return
	}
	apiresponses.RespondSent(c)
}

func (nc *NotificationController) handlePlain(c *gin.Context) {
	log := system.GetReqLogger(c, nc.log)

	var body PlainRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiresponses.RespondBadRequestWithDetails(c, "invalid plain notification", err.Error())
		return
	}
	for _, r := range body.Recipients {
		if !strings.Contains(r, "@") {
			apiresponses.RespondBadRequest(c, "invalid recipient address: "+r)
			return
		}
	}

	log.Debugw("Dispatching plain notification", "template", body.TemplateName, "recipients", body.Recipients)
	err := nc.notifier.SendPlainTextMail(c.Request.Context(), body.Recipients, body.From, body.Subject, body.Placeholders, body.TemplateName)
	if err != nil {
		apiresponses.RespondDispatchError(c, "send plain notification", err, log)
		return
	}
	apiresponses.RespondSent(c)
}
