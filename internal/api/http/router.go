package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"melange-connection-backend/internal/telemetry"
)

// NewRouter registers every route under the name its security level is keyed by.
func NewRouter(h *ConnectionHandler, auth *AuthMiddleware) *mux.Router {
	router := mux.NewRouter()
	router.Use(LoggingMiddleware, auth.Middleware)

	router.HandleFunc("/healthz", h.Health).Methods(http.MethodGet).Name("Health")
	router.Handle("/metrics", telemetry.Handler()).Methods(http.MethodGet).Name("Metrics")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/orgs/{orgID:[0-9]+}/connections", h.StartConnectionAsUser).Methods(http.MethodPost).Name("StartConnectionAsUser")
	api.HandleFunc("/orgs/{orgID:[0-9]+}/connections", h.ListOrgConnections).Methods(http.MethodGet).Name("ListOrgConnections")
	api.HandleFunc("/orgs/{orgID:[0-9]+}/profiles/{profileID:[0-9]+}/connections", h.StartConnectionAsOrg).Methods(http.MethodPost).Name("StartConnectionAsOrg")
	api.HandleFunc("/orgs/{orgID:[0-9]+}/invitations", h.InviteAnonymous).Methods(http.MethodPost).Name("InviteAnonymous")
	api.HandleFunc("/profiles/{profileID:[0-9]+}/connections", h.ListProfileConnections).Methods(http.MethodGet).Name("ListProfileConnections")

	api.HandleFunc("/connections/{id:[0-9]+}", h.GetConnection).Methods(http.MethodGet).Name("GetConnection")
	api.HandleFunc("/connections/{id:[0-9]+}/user-role", h.SelectUserRole).Methods(http.MethodPut).Name("SelectUserRole")
	api.HandleFunc("/connections/{id:[0-9]+}/org-role", h.SelectOrgRole).Methods(http.MethodPut).Name("SelectOrgRole")
	api.HandleFunc("/connections/{id:[0-9]+}/role", h.RevokeRole).Methods(http.MethodDelete).Name("RevokeRole")
	api.HandleFunc("/connections/{id:[0-9]+}/messages", h.PostMessage).Methods(http.MethodPost).Name("PostMessage")
	api.HandleFunc("/connections/{id:[0-9]+}/messages", h.ListMessages).Methods(http.MethodGet).Name("ListMessages")
	api.HandleFunc("/connections/{id:[0-9]+}/seen", h.MarkSeen).Methods(http.MethodPost).Name("MarkSeen")
	api.HandleFunc("/connections/{id:[0-9]+}/eligibility", h.CheckEligibility).Methods(http.MethodGet).Name("CheckEligibility")

	api.HandleFunc("/invitations/{token}/redeem", h.RedeemAnonymousInvite).Methods(http.MethodPost).Name("RedeemAnonymousInvite")

	return router
}
