package relay

import "net/http"

// setupRoutes wires all HTTP routes onto the relay's mux.
func (r *Relay) setupRoutes() {
	r.mux.HandleFunc("/health", r.HandleHealth)
	r.mux.HandleFunc("/metrics", r.HandleMetrics)
	r.mux.HandleFunc("/sync/push", r.HandleSyncPush)
	r.mux.HandleFunc("/sync/since", r.HandleSyncSince)
	r.mux.HandleFunc("/sync/ws", r.HandleSyncWS)
	r.mux.HandleFunc("/devices/register", r.HandleRegister)

	r.mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
}
