package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
}

func registerSessionRoutes(mux *http.ServeMux, handler *Handler, verifier TokenVerifier) {
	mux.Handle("POST /v1/session/bootstrap", RequireAuth(verifier, http.HandlerFunc(handler.BootstrapSession)))
	mux.Handle("GET /v1/me", RequireAuth(verifier, http.HandlerFunc(handler.GetMe)))
	mux.Handle("PUT /v1/me/settings", RequireAuth(verifier, http.HandlerFunc(handler.UpdateSettings)))
	mux.Handle("POST /v1/me/position", RequireAuth(verifier, http.HandlerFunc(handler.ReportPosition)))
	mux.Handle("POST /v1/me/checkin", RequireAuth(verifier, http.HandlerFunc(handler.CheckIn)))
	mux.Handle("POST /v1/me/simulator/start", RequireAuth(verifier, http.HandlerFunc(handler.StartSimulator)))
	mux.Handle("POST /v1/me/simulator/stop", RequireAuth(verifier, http.HandlerFunc(handler.StopSimulator)))
	mux.Handle("GET /v1/watch/session", RequireAuth(verifier, http.HandlerFunc(handler.WatchSession)))
}

func registerSquadRoutes(mux *http.ServeMux, handler *Handler, verifier TokenVerifier) {
	mux.Handle("GET /v1/squad", RequireAuth(verifier, http.HandlerFunc(handler.GetMySquad)))
	mux.Handle("POST /v1/squad/invites", RequireAuth(verifier, http.HandlerFunc(handler.SendInvite)))
	mux.Handle("GET /v1/squad/invites", RequireAuth(verifier, http.HandlerFunc(handler.ListMyInvites)))
	mux.Handle("POST /v1/squad/invites/{inviteID}/accept", RequireAuth(verifier, http.HandlerFunc(handler.AcceptInvite)))
	mux.Handle("POST /v1/squad/invites/{inviteID}/decline", RequireAuth(verifier, http.HandlerFunc(handler.DeclineInvite)))
	mux.Handle("DELETE /v1/squad/members/{userID}", RequireAuth(verifier, http.HandlerFunc(handler.RemoveSquadMember)))
	mux.Handle("POST /v1/squad/members/{userID}/promote", RequireAuth(verifier, http.HandlerFunc(handler.PromoteSquadMember)))
	mux.Handle("POST /v1/squad/leave", RequireAuth(verifier, http.HandlerFunc(handler.LeaveSquad)))
}

func registerAreaRoutes(mux *http.ServeMux, handler *Handler, verifier TokenVerifier, devPasscode string) {
	mux.Handle("GET /v1/areas", RequireAuth(verifier, http.HandlerFunc(handler.ListAreas)))
	// Area authoring is dev-only tooling; the passcode gate rides on top of
	// the normal bearer auth.
	mux.Handle("POST /v1/areas", RequireAuth(verifier, RequireDevPasscode(devPasscode, http.HandlerFunc(handler.CreateArea))))
	mux.Handle("PUT /v1/areas/{areaID}", RequireAuth(verifier, RequireDevPasscode(devPasscode, http.HandlerFunc(handler.RenameArea))))
	mux.Handle("DELETE /v1/areas/{areaID}", RequireAuth(verifier, RequireDevPasscode(devPasscode, http.HandlerFunc(handler.DeleteArea))))
}
