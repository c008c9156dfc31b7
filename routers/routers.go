package routers

import (
	"mint-dashboard/handlers"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes sets up all the HTTP routes for the dashboard
func RegisterRoutes(r *mux.Router, h *handlers.Handler) {

	// Opens a session for the configured wallet and runs the first refresh
	r.HandleFunc("/session", h.Connect).Methods("POST")

	// Tears the session down and drops its activity journal
	r.HandleFunc("/session", h.Disconnect).Methods("DELETE")

	r.HandleFunc("/session", h.GetSession).Methods("GET")

	// Derived view computed from the cached chain state and the local clock
	r.HandleFunc("/state", h.GetState).Methods("GET")

	// On-demand refresh of global rank, balance and mint record
	r.HandleFunc("/state/refresh", h.Refresh).Methods("POST")

	r.HandleFunc("/mint/claim-rank", h.ClaimRank).Methods("POST")
	r.HandleFunc("/mint/claim-reward", h.ClaimReward).Methods("POST")

	r.HandleFunc("/activity", h.GetActivity).Methods("GET")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
}
