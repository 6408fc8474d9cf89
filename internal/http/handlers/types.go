package handlers

import (
	"net/http"
	"sort"

	"refinery/internal/domain"
)

type processTypeEntry struct {
	Type string `json:"type"`
	domain.ProcessInfo
}

// ProcessTypes returns the operation catalog grouped flat, sorted by type for
// a stable response body.
func (a *App) ProcessTypes(w http.ResponseWriter, r *http.Request) {
	out := make([]processTypeEntry, 0, len(domain.ProcessCatalog))
	for kind, info := range domain.ProcessCatalog {
		out = append(out, processTypeEntry{Type: string(kind), ProcessInfo: info})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	a.json(w, http.StatusOK, map[string]any{
		"count": len(out),
		"types": out,
	})
}
