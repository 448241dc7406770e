package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"mesgd/pkg/models"
	"mesgd/pkg/utils"
)

func registerStatuses(r *mux.Router, d *deps) {
	r.HandleFunc("/statuses", d.postStatus).Methods(http.MethodPost)
	r.HandleFunc("/statuses", d.listStatuses).Methods(http.MethodGet)
	r.HandleFunc("/statuses/mine", d.listOwnStatuses).Methods(http.MethodGet)
	r.HandleFunc("/statuses/{id}/view", d.viewStatus).Methods(http.MethodPost)
	r.HandleFunc("/statuses/{id}", d.deleteStatus).Methods(http.MethodDelete)
}

type postStatusRequest struct {
	Payload models.Payload `json:"payload"`
	// TTL is a Go duration string like "24h"; empty means the default.
	TTL string `json:"ttl"`
}

func (d *deps) postStatus(w http.ResponseWriter, r *http.Request) {
	uid, ok := identity(w, r)
	if !ok {
		return
	}
	var req postStatusRequest
	if !decode(w, r, &req) {
		return
	}
	var ttl time.Duration
	if req.TTL != "" {
		v, err := time.ParseDuration(req.TTL)
		if err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid ttl")
			return
		}
		ttl = v
	}
	p, err := d.f.PostStatus(r.Context(), uid, req.Payload, ttl)
	if err != nil {
		utils.JSONAppError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusCreated, p)
}

// listStatuses returns other users' visible posts grouped by owner.
func (d *deps) listStatuses(w http.ResponseWriter, r *http.Request) {
	uid, ok := identity(w, r)
	if !ok {
		return
	}
	groups, err := d.f.ListStatuses(r.Context(), uid)
	if err != nil {
		utils.JSONAppError(w, err)
		return
	}
	if groups == nil {
		groups = []models.StatusGroup{}
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{"statuses": groups})
}

// listOwnStatuses returns the caller's posts including viewer lists.
func (d *deps) listOwnStatuses(w http.ResponseWriter, r *http.Request) {
	uid, ok := identity(w, r)
	if !ok {
		return
	}
	posts, err := d.f.ListOwnStatuses(r.Context(), uid)
	if err != nil {
		utils.JSONAppError(w, err)
		return
	}
	if posts == nil {
		posts = []models.StatusPost{}
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{"statuses": posts})
}

func (d *deps) viewStatus(w http.ResponseWriter, r *http.Request) {
	uid, ok := identity(w, r)
	if !ok {
		return
	}
	if err := d.f.ViewStatus(r.Context(), mux.Vars(r)["id"], uid); err != nil {
		utils.JSONAppError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{"ok": true})
}

func (d *deps) deleteStatus(w http.ResponseWriter, r *http.Request) {
	uid, ok := identity(w, r)
	if !ok {
		return
	}
	if err := d.f.DeleteStatus(r.Context(), mux.Vars(r)["id"], uid); err != nil {
		utils.JSONAppError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{"ok": true})
}
