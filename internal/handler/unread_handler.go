/*
Package handler provides the HTTP handlers and routing setup for the Sociowire server.

This file contains the read-state endpoints: authoritative unread counts the
reconciliation layer re-fetches after reconnects, and the mark-read mutations
that precede the corresponding socket receipts.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"sociowire/internal/pkg/auth/jwt"
	"sociowire/internal/pkg/errs"
	"sociowire/internal/pkg/resp"
)

// HandleUnreadChats returns the number of distinct chats with unread messages
// for the authenticated caller.
func HandleUnreadChats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		count, err := deps.Store.CountUnreadChats(r.Context(), identity.UserID)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, map[string]int{"unreadChats": count})
	}
}

// HandleUnreadNotifications returns the caller's unread notification count.
func HandleUnreadNotifications(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		count, err := deps.Store.CountUnreadNotifications(r.Context(), identity.UserID)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, map[string]int{"unreadNotifications": count})
	}
}

// HandleUnreadGroupMessages returns how many messages in the group arrived
// after the caller's read watermark.
func HandleUnreadGroupMessages(deps *AppDeps) http.HandlerFunc {
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

		count, err := deps.Store.CountUnreadGroupMessages(r.Context(), groupID, identity.UserID)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, map[string]int{"unreadGroupMessages": count})
	}
}

// HandleMarkChatRead marks every message addressed to the caller in the chat as read.
func HandleMarkChatRead(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		chatID := chi.URLParam(r, "chatId")
		if chatID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if err := deps.Store.MarkChatRead(r.Context(), chatID, identity.UserID); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}

// HandleMarkGroupRead advances the caller's read watermark for the group.
// The receipt is bulk ("read everything up to now"), matching the messagesRead
// broadcast the client emits afterwards.
func HandleMarkGroupRead(deps *AppDeps) http.HandlerFunc {
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

		if err := deps.Store.MarkGroupMessagesRead(r.Context(), groupID, identity.UserID); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}

// HandleMarkNotificationsRead marks all of the caller's notifications as read.
func HandleMarkNotificationsRead(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		if err := deps.Store.MarkNotificationsRead(r.Context(), identity.UserID); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}
