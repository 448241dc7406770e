package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"mesgd/pkg/models"
	"mesgd/pkg/utils"
)

func registerMessages(r *mux.Router, d *deps) {
	r.HandleFunc("/conversations/{id}/messages", d.sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/messages", d.listMessages).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/subscribe", d.subscribe).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}/reactions", d.addReaction).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}/reactions/{emoji}", d.removeReaction).Methods(http.MethodDelete)
}

type sendMessageRequest struct {
	Payload models.Payload `json:"payload"`
}

// sendMessage handles POST /v1/conversations/{id}/messages. The server
// assigns id, seq and timestamp; clients never supply them.
func (d *deps) sendMessage(w http.ResponseWriter, r *http.Request) {
	uid, ok := identity(w, r)
	if !ok {
		return
	}
	var req sendMessageRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := d.f.SendMessage(r.Context(), mux.Vars(r)["id"], uid, req.Payload)
	if err != nil {
		utils.JSONAppError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusCreated, m)
}

// listMessages handles GET /v1/conversations/{id}/messages with optional
// after_seq and limit query parameters.
func (d *deps) listMessages(w http.ResponseWriter, r *http.Request) {
	uid, ok := identity(w, r)
	if !ok {
		return
	}
	var afterSeq uint64
	if s := r.URL.Query().Get("after_seq"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid after_seq")
			return
		}
		afterSeq = v
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			utils.JSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = v
	}
	msgs, err := d.f.FetchHistory(r.Context(), mux.Vars(r)["id"], uid, afterSeq, limit)
	if err != nil {
		utils.JSONAppError(w, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{"messages": msgs})
}

type reactionRequest struct {
	Emoji string `json:"emoji"`
}

func (d *deps) addReaction(w http.ResponseWriter, r *http.Request) {
	uid, ok := identity(w, r)
	if !ok {
		return
	}
	var req reactionRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Emoji == "" {
		utils.JSONError(w, http.StatusBadRequest, "missing emoji")
		return
	}
	m, err := d.f.React(r.Context(), mux.Vars(r)["id"], req.Emoji, uid)
	if err != nil {
		utils.JSONAppError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, m)
}

func (d *deps) removeReaction(w http.ResponseWriter, r *http.Request) {
	uid, ok := identity(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	m, err := d.f.Unreact(r.Context(), vars["id"], vars["emoji"], uid)
	if err != nil {
		utils.JSONAppError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, m)
}
