package httpx

import "net/http"

// Probe builds the health/readiness handler served on both stacks.
// /healthz reports liveness unconditionally; /readyz consults ready and
// returns 503 until the store is open.
func Probe(ready func() bool, version string) HandlerFunc {
	if version == "" {
		version = "dev"
	}
	return func(w ResponseWriter, r *Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Path {
		case "/healthz":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		case "/readyz":
			if ready != nil && !ready() {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"not ready"}`))
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok","version":"` + version + `"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
		}
	}
}
