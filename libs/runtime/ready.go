package runtime

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ReadyCheck is a named dependency check for /readyz.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

const readyTimeout = 2 * time.Second

// NewBaseMuxWithReady serves /healthz unconditionally and /readyz from the
// given checks, which run concurrently under a shared timeout.
func NewBaseMuxWithReady(checks ...ReadyCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if failures := runChecks(r.Context(), checks); len(failures) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(strings.Join(failures, "; ")))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// runChecks returns "name: error" for each failing check, in check order.
func runChecks(ctx context.Context, checks []ReadyCheck) []string {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	results := make([]string, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		if check.Check == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := check.Check(ctx); err != nil {
				name := check.Name
				if name == "" {
					name = "dependency"
				}
				results[i] = name + ": " + err.Error()
			}
		}()
	}
	wg.Wait()

	var failures []string
	for _, res := range results {
		if res != "" {
			failures = append(failures, res)
		}
	}
	return failures
}
