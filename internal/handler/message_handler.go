/*
Package handler provides the HTTP handlers and routing setup for the Sociowire server.

This file contains the persistence endpoints for messages and notifications.
Persist-then-emit: the acting client calls these first, then emits the
corresponding routing event over its socket connection. The hub never writes
here; these handlers never touch the hub.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"sociowire/internal/pkg/auth/jwt"
	"sociowire/internal/pkg/errs"
	"sociowire/internal/pkg/req"
	"sociowire/internal/pkg/resp"
)

// MaxContentBytes is the maximum allowed size (in bytes) for message content.
const MaxContentBytes = 5000

// CreateMessageInput is the body for POST /api/messages.
type CreateMessageInput struct {
	ChatID     string `json:"chatId"`
	ReceiverID string `json:"recieverId"`
	Content    string `json:"content"`
}

// HandleCreateMessage persists a direct message from the authenticated caller.
func HandleCreateMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input CreateMessageInput
		if err := req.BindJSON(r, &input); err != nil {
			resp.RespondError(w, r, err)
			return
		}

		if input.ChatID == "" || input.ReceiverID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}
		if input.Content == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageContentEmpty))
			return
		}
		if len(input.Content) > MaxContentBytes {
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageContentTooLong))
			return
		}

		msg, err := deps.Store.SaveDirectMessage(r.Context(), input.ChatID, identity.UserID, input.ReceiverID, input.Content)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, msg)
	}
}

// CreateGroupMessageInput is the body for POST /api/groups/{groupId}/messages.
type CreateGroupMessageInput struct {
	Content string `json:"content"`
}

// HandleCreateGroupMessage persists a group message from the authenticated caller.
func HandleCreateGroupMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		groupID := chi.URLParam(r, "groupId")
		if groupID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		var input CreateGroupMessageInput
		if err := req.BindJSON(r, &input); err != nil {
			resp.RespondError(w, r, err)
			return
		}

		if input.Content == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageContentEmpty))
			return
		}
		if len(input.Content) > MaxContentBytes {
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageContentTooLong))
			return
		}

		msg, err := deps.Store.SaveGroupMessage(r.Context(), groupID, identity.UserID, input.Content)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, msg)
	}
}

// CreateNotificationInput is the body for POST /api/notifications.
type CreateNotificationInput struct {
	UserID string `json:"userId"`
	Kind   string `json:"kind"`
}

// HandleCreateNotification persists a notification for the named recipient,
// attributed to the authenticated caller.
func HandleCreateNotification(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input CreateNotificationInput
		if err := req.BindJSON(r, &input); err != nil {
			resp.RespondError(w, r, err)
			return
		}

		if input.UserID == "" || input.Kind == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		note, err := deps.Store.SaveNotification(r.Context(), input.UserID, identity.UserID, input.Kind)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, note)
	}
}
