package output

import (
	"path/filepath"
	"time"

	"retouch/internal/domain/agent/ports"
)

// Summary is written once a session ends.
type Summary struct {
	SessionID     string             `json:"session_id"`
	Image         string             `json:"image"`
	Outcome       string             `json:"outcome"`
	Attempts      int                `json:"attempts"`
	RetryCeiling  int                `json:"retry_ceiling"`
	Artifacts     int                `json:"artifacts"`
	FinalArtifact string             `json:"final_artifact,omitempty"`
	Verdict       string             `json:"verdict,omitempty"`
	Error         string             `json:"error,omitempty"`
	StartedAt     time.Time          `json:"started_at"`
	FinishedAt    time.Time          `json:"finished_at"`
	Calls         []ports.CallRecord `json:"calls"`
}

// WriteSummary writes summary.json into the journal's directory. The final
// artifact path is stored relative to it.
func (j *Journal) WriteSummary(summary Summary) error {
	if filepath.IsAbs(summary.FinalArtifact) {
		if rel, err := filepath.Rel(j.dir, summary.FinalArtifact); err == nil {
			summary.FinalArtifact = rel
		}
	}
	if summary.Calls == nil {
		summary.Calls = []ports.CallRecord{}
	}
	return writeJSON(filepath.Join(j.dir, SummaryFile), summary)
}
