package handlers

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"mesgd/pkg/utils"
)

func registerMedia(r *mux.Router, d *deps) {
	r.HandleFunc("/media", d.uploadMedia).Methods(http.MethodPost)
	r.HandleFunc("/media/{ref}", d.downloadMedia).Methods(http.MethodGet)
}

// uploadMedia handles POST /v1/media. The body is the raw blob; the
// returned ref goes into a payload's mediaRef field.
func (d *deps) uploadMedia(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity(w, r); !ok {
		return
	}
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	ref, err := d.blobs.Save(r.Body, ct)
	if err != nil {
		utils.JSONAppError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusCreated, map[string]string{
		"ref": ref,
		"url": d.blobs.URL(ref),
	})
}

func (d *deps) downloadMedia(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity(w, r); !ok {
		return
	}
	rc, ct, err := d.blobs.Open(mux.Vars(r)["ref"])
	if err != nil {
		utils.JSONAppError(w, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}
