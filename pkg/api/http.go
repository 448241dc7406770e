package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"mesgd/pkg/api/handlers"
	"mesgd/pkg/blob"
	"mesgd/pkg/facade"
	"mesgd/pkg/utils"
)

// Router assembles the versioned API surface. Gateway middleware and the
// unversioned operational endpoints are mounted by the caller.
func Router(f *facade.Facade, blobs *blob.FS) *mux.Router {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()
	handlers.Register(v1, f, blobs)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		utils.JSONError(w, http.StatusNotFound, "not found")
	})
	return r
}
