package httpx

import "net/http"

// NetHTTP adapts a HandlerFunc into a standard net/http handler.
func NetHTTP(h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := &Request{
			Ctx:        r.Context(),
			Method:     r.Method,
			Path:       r.URL.Path,
			Header:     r.Header,
			Body:       r.Body,
			RemoteAddr: r.RemoteAddr,
		}
		h(&netHTTPWriter{w: w}, req)
		if req.Body != nil {
			_ = req.Body.Close()
		}
	})
}

type netHTTPWriter struct {
	w      http.ResponseWriter
	status int
}

func (r *netHTTPWriter) Header() http.Header { return r.w.Header() }

func (r *netHTTPWriter) WriteHeader(status int) {
	r.status = status
	r.w.WriteHeader(status)
}

func (r *netHTTPWriter) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.WriteHeader(http.StatusOK)
	}
	return r.w.Write(b)
}
