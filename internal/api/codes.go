package api

import (
	"encoding/json"
	"net/http"

	"github.com/hdotools/hdomanager/internal/hdo"
)

// RegisterCodesHandler serves the configured code descriptors, as opposed
// to /hdo/codes which lists everything published on the source page.
func RegisterCodesHandler(mux *http.ServeMux) {
	mux.HandleFunc("/codes", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		response := struct {
			Codes []hdo.CodeDescriptor `json:"codes"`
		}{
			Codes: hdo.ConfiguredCodes(),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	})
}
