package runtime

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// ReadyCheck is a named dependency probe surfaced on /readyz.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

const probeTimeout = 2 * time.Second

// NewBaseMux returns a ServeMux preloaded with /healthz (liveness) and
// /readyz (readiness, failing if any check fails).
func NewBaseMux(checks ...ReadyCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		var failed []string
		for _, c := range checks {
			if c.Check == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
			err := c.Check(ctx)
			cancel()
			if err != nil {
				name := c.Name
				if name == "" {
					name = "dependency"
				}
				failed = append(failed, name+": "+err.Error())
			}
		}
		if len(failed) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(strings.Join(failed, "; ")))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
