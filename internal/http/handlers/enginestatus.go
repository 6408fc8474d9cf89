package handlers

import "net/http"

// EngineStatus probes the engine and reports reachability. Always 200; the
// body says whether the engine is up.
func (a *App) EngineStatus(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Engine.CheckStatus(r.Context()))
}
