package controllers

import (
	"net/http"
	"strings"

	"github.com/posterloft/posterloft-backend/api/middleware"
	"github.com/posterloft/posterloft-backend/api/responses"
	"github.com/posterloft/posterloft-backend/api/validators"
	checkoutsvc "github.com/posterloft/posterloft-backend/internal/checkout"
	pkgerrors "github.com/posterloft/posterloft-backend/pkg/errors"
	"github.com/posterloft/posterloft-backend/pkg/logger"
)

type checkoutSessionRequest struct {
	CatalogItemID string `json:"catalog_item_id" validate:"required,max=128"`
	Size          string `json:"size" validate:"required,max=32"`
	Paper         string `json:"paper" validate:"required,max=32"`
	LayoutMode    string `json:"layout_mode,omitempty" validate:"omitempty,oneof=fill fit"`
	Email         string `json:"email,omitempty" validate:"omitempty,email"`
}

// CreateCheckoutSession starts a hosted payment session for one poster.
// Guests are allowed; a signed-in account is attached to the session metadata.
func CreateCheckoutSession(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutSessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		email := strings.TrimSpace(payload.Email)
		if email == "" {
			email = middleware.EmailFromContext(ctx)
		}

		session, err := svc.CreateSession(ctx, checkoutsvc.SessionInput{
			CatalogItemID: validators.SanitizeString(payload.CatalogItemID, 128),
			Size:          validators.SanitizeString(payload.Size, 32),
			Paper:         validators.SanitizeString(payload.Paper, 32),
			LayoutMode:    payload.LayoutMode,
			CustomerEmail: email,
			AccountID:     middleware.UserIDFromContext(ctx),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}
