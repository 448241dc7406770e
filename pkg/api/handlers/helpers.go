package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"mesgd/pkg/auth"
	"mesgd/pkg/blob"
	"mesgd/pkg/facade"
	"mesgd/pkg/utils"
)

type deps struct {
	f     *facade.Facade
	blobs *blob.FS
	up    websocket.Upgrader
}

// Register mounts every versioned route on r.
func Register(r *mux.Router, f *facade.Facade, blobs *blob.FS) {
	d := &deps{
		f:     f,
		blobs: blobs,
		up: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// cross-origin policy is enforced by the gateway
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	registerConversations(r, d)
	registerMessages(r, d)
	registerStatuses(r, d)
	registerMedia(r, d)
}

// identity returns the acting user or writes a 401.
func identity(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid := auth.IdentityFrom(r.Context())
	if uid == "" {
		utils.JSONError(w, http.StatusUnauthorized, "identity required")
		return "", false
	}
	return uid, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}
