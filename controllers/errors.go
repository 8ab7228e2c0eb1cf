package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/jobboard/services"
	"github.com/cppla/jobboard/utils"
)

// respondError maps service errors onto HTTP statuses.
func respondError(ctx *gin.Context, err error) {
	var inputErr *services.InputError
	var oauthOnly *services.OAuthOnlyError
	switch {
	case errors.As(err, &inputErr):
		utils.Error(ctx, http.StatusBadRequest, inputErr.Msg)
	case errors.As(err, &oauthOnly):
		utils.Error(ctx, http.StatusBadRequest, oauthOnly.Error())
	case errors.Is(err, services.ErrInvalidInput):
		utils.Error(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidSignature):
		utils.Error(ctx, http.StatusBadRequest, "Invalid signature")
	case errors.Is(err, services.ErrInvalidToken):
		utils.Error(ctx, http.StatusBadRequest, "Invalid or expired token")
	case errors.Is(err, services.ErrInvalidCredentials):
		utils.Error(ctx, http.StatusUnauthorized, services.ErrInvalidCredentials.Error())
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, "Not found")
	case errors.Is(err, services.ErrNotConfigured):
		utils.Error(ctx, http.StatusInternalServerError, err.Error())
	default:
		utils.ServerError(ctx, err)
	}
}

// notConfigured answers 500 before any collaborator is called.
func notConfigured(ctx *gin.Context, what string) {
	utils.Error(ctx, http.StatusInternalServerError, what+" not configured")
}
