package httpapi

import (
	"net/http"
)

type queueStatsResponse struct {
	Pending   int `json:"pending"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Dead      int `json:"dead"`
}

func (s *Server) queueStats(w http.ResponseWriter, r *http.Request) {
	stats := s.jobs.Stats(r.URL.Query().Get("store_id"))
	writeJSON(w, http.StatusOK, queueStatsResponse{
		Pending:   stats.Pending,
		Processed: stats.Processed,
		Failed:    stats.Failed,
		Dead:      stats.Dead,
	})
}

func (s *Server) retryJob(w http.ResponseWriter, r *http.Request) {
	if err := s.jobs.Retry(r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
