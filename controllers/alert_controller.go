package controllers

import (
	"context"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/jobboard/models"
	"github.com/cppla/jobboard/services"
	"github.com/cppla/jobboard/utils"
)

// Alerts is the alert lifecycle. services.AlertService implements it.
type Alerts interface {
	Subscribe(ctx context.Context, email, frequency string) (*services.SubscribeResult, error)
	Unsubscribe(ctx context.Context, token string) (*models.JobAlert, error)
	Status(ctx context.Context, email string) (*models.JobAlert, error)
}

// AlertController manages email job alert subscriptions.
type AlertController struct {
	alerts Alerts
}

// NewAlertController creates an AlertController.
func NewAlertController(alerts Alerts) *AlertController {
	return &AlertController{alerts: alerts}
}

type subscribeRequest struct {
	Email     string `json:"email"`
	Frequency string `json:"frequency"`
}

// Subscribe creates or reactivates an alert. Realtime alerts answer with a checkout to complete.
func (a *AlertController) Subscribe(ctx *gin.Context) {
	var req subscribeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "Invalid request body")
		return
	}
	if a.alerts == nil {
		notConfigured(ctx, "Store")
		return
	}
	res, err := a.alerts.Subscribe(ctx.Request.Context(), req.Email, req.Frequency)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if res.Checkout != nil {
		utils.Success(ctx, gin.H{"requiresPayment": true, "checkout": res.Checkout})
		return
	}
	utils.Success(ctx, gin.H{"alert": res.Alert})
}

var unsubscribedPage = template.Must(template.New("unsubscribed").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Unsubscribed</title></head>
<body><h1>You have been unsubscribed</h1><p>{{.}} will no longer receive job alerts.</p></body></html>
`))

// Unsubscribe deactivates the alert named by the token query parameter.
// GET renders a confirmation page for links opened from mail; POST answers JSON.
func (a *AlertController) Unsubscribe(ctx *gin.Context) {
	token := ctx.Query("token")
	if token == "" {
		utils.Error(ctx, http.StatusBadRequest, "Token is required")
		return
	}
	if a.alerts == nil {
		notConfigured(ctx, "Store")
		return
	}
	alert, err := a.alerts.Unsubscribe(ctx.Request.Context(), token)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if ctx.Request.Method == http.MethodGet {
		ctx.Header("Content-Type", "text/html; charset=utf-8")
		ctx.Status(http.StatusOK)
		_ = unsubscribedPage.Execute(ctx.Writer, alert.Email)
		return
	}
	utils.Success(ctx, gin.H{"alert": alert})
}

// Status reports the alert of the email query parameter.
func (a *AlertController) Status(ctx *gin.Context) {
	if a.alerts == nil {
		notConfigured(ctx, "Store")
		return
	}
	alert, err := a.alerts.Status(ctx.Request.Context(), ctx.Query("email"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"alert": alert})
}
