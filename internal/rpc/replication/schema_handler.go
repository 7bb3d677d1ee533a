package replication

import (
	"encoding/json"
	"net/http"

	"github.com/replicode-ai/replicode/internal/config"
	"github.com/replicode-ai/replicode/internal/replication"
)

// SchemaHandler serves the strict model-output schemas as JSON, so clients
// can inspect exactly what the daemon demands from its models.
type SchemaHandler struct {
	Cfg config.ReplicationConfig
}

// ServeHTTP renders the suggestion and assessment schemas.
func (h SchemaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code_suggestion":   replication.SuggestionSchema(),
		"output_assessment": replication.AssessmentSchema(h.Cfg.MaxListItems),
	})
}
