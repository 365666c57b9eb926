// Package statusapi exposes the coordinator's getStatus() computation
// (spec.md §4.5.7) as a small JSON HTTP API, built on
// github.com/julienschmidt/httprouter and github.com/rs/cors the way the
// classic go-ethereum-family operational surface does, with
// golang.org/x/net/trace wired onto /debug/requests for request tracing.
package statusapi

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"golang.org/x/net/trace"

	"github.com/ironforge-pool/poolcoordinator/internal/coordinator"
)

// New builds the handler for a live coordinator.
func New(c *coordinator.Coordinator) http.Handler {
	router := httprouter.New()

	router.GET("/status", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		handleStatus(w, r, c, "")
	})
	router.GET("/status/:address", func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		handleStatus(w, r, c, ps.ByName("address"))
	})
	router.GET("/debug/requests", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		trace.Render(w, r, true)
	})

	return cors.Default().Handler(router)
}

func handleStatus(w http.ResponseWriter, r *http.Request, c *coordinator.Coordinator, address string) {
	tr := trace.New("statusapi", "getStatus")
	defer tr.Finish()
	tr.LazyPrintf("address=%q", address)

	status := c.GetStatus(r.Context(), address)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		tr.LazyPrintf("encode error: %v", err)
		tr.SetError()
	}
}
