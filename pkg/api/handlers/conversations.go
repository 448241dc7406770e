package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"mesgd/pkg/utils"
)

func registerConversations(r *mux.Router, d *deps) {
	r.HandleFunc("/conversations", d.createConversation).Methods(http.MethodPost)
	r.HandleFunc("/conversations", d.listConversations).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}", d.getConversation).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/summary", d.getSummary).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/read", d.markRead).Methods(http.MethodPost)
}

type createConversationRequest struct {
	Participants []string `json:"participants"`
	IsGroup      bool     `json:"is_group"`
	GroupName    string   `json:"group_name"`
	GroupPhoto   string   `json:"group_photo"`
}

// createConversation handles POST /v1/conversations. The caller is added
// to the participant set if absent.
func (d *deps) createConversation(w http.ResponseWriter, r *http.Request) {
	uid, ok := identity(w, r)
	if !ok {
		return
	}
	var req createConversationRequest
	if !decode(w, r, &req) {
		return
	}
	found := false
	for _, p := range req.Participants {
		if p == uid {
			found = true
			break
		}
	}
	if !found {
		req.Participants = append(req.Participants, uid)
	}
	conv, err := d.f.CreateConversation(r.Context(), req.Participants, req.IsGroup, req.GroupName, req.GroupPhoto)
	if err != nil {
		utils.JSONAppError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusCreated, conv)
}

// listConversations handles GET /v1/conversations, the caller's inbox
// ordered by most recent activity.
func (d *deps) listConversations(w http.ResponseWriter, r *http.Request) {
	uid, ok := identity(w, r)
	if !ok {
		return
	}
	list, err := d.f.ListConversations(r.Context(), uid)
	if err != nil {
		utils.JSONAppError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{"conversations": list})
}

func (d *deps) getConversation(w http.ResponseWriter, r *http.Request) {
	uid, ok := identity(w, r)
	if !ok {
		return
	}
	conv, err := d.f.GetConversation(r.Context(), mux.Vars(r)["id"], uid)
	if err != nil {
		utils.JSONAppError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, conv)
}

func (d *deps) getSummary(w http.ResponseWriter, r *http.Request) {
	uid, ok := identity(w, r)
	if !ok {
		return
	}
	s, err := d.f.GetSummary(r.Context(), mux.Vars(r)["id"], uid)
	if err != nil {
		utils.JSONAppError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, s)
}

type markReadRequest struct {
	UptoSeq uint64 `json:"upto_seq"`
}

// markRead handles POST /v1/conversations/{id}/read.
func (d *deps) markRead(w http.ResponseWriter, r *http.Request) {
	uid, ok := identity(w, r)
	if !ok {
		return
	}
	var req markReadRequest
	if !decode(w, r, &req) {
		return
	}
	if err := d.f.MarkRead(r.Context(), mux.Vars(r)["id"], uid, req.UptoSeq); err != nil {
		utils.JSONAppError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{"ok": true})
}
