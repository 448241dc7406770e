// Package httpx abstracts the serving stack so the same handler can run
// on net/http or fasthttp. The main API stays on net/http (websockets
// need connection hijacking); fasthttp is offered for the lightweight
// probe listener.
package httpx

import (
	"context"
	"io"
	"net/http"
)

// Request is the unified request representation used by handlers.
type Request struct {
	Ctx        context.Context
	Method     string
	Path       string
	Header     http.Header
	Body       io.ReadCloser
	RemoteAddr string
}

// ResponseWriter is the subset of http.ResponseWriter semantics adapters
// must provide.
type ResponseWriter interface {
	Header() http.Header
	Write([]byte) (int, error)
	WriteHeader(status int)
}

// HandlerFunc is the adapter-independent handler signature.
type HandlerFunc func(w ResponseWriter, r *Request)
