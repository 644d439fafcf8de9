package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"etl-records/internal/record"

	"github.com/sirupsen/logrus"
)

// handleJobs acts as a multiplexer: POST creates new job, other verbs not allowed.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createJob(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobByID routes GET for specific job IDs.
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	// Expected path: /jobs/{id}
	id := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if id == "" {
		http.Error(w, "job id missing", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getJob(w, id)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// createJob handles POST /jobs
func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req JobRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	hasRecords := len(req.Records) > 0
	if (req.Input == "") == !hasRecords {
		http.Error(w, "exactly one of input or records is required", http.StatusBadRequest)
		return
	}

	// Inline batches are decoded up front so malformed input fails the
	// request instead of the job.
	var records []record.Record
	if hasRecords {
		records, err = s.parser.Parse(req.Records)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	jobID := newUUID()
	status := &JobStatus{
		JobID:     jobID,
		Status:    "queued",
		StartedAt: time.Now(),
	}

	s.mu.Lock()
	s.jobs[jobID] = &jobEntry{status: status}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runJob(jobID, req.Input, records)
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(JobResponse{JobID: jobID})
}

// runJob loads the batch when needed and processes it.
func (s *Server) runJob(jobID, input string, records []record.Record) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.setStatus(jobID, "running")
	ctx := context.Background()

	if records == nil {
		var err error
		records, err = s.load(ctx, input)
		if err != nil {
			s.markJobError(jobID, err)
			return
		}
	}
	logrus.Infof("job %s: loaded %d records", jobID, len(records))

	sum, err := s.run(ctx, records)

	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.jobs[jobID]
	entry.status.Summary = &sum
	finished := time.Now()
	entry.status.FinishedAt = &finished
	if err != nil {
		logrus.Errorf("job %s failed: %v", jobID, err)
		entry.status.Status = "error"
		entry.status.Error = err.Error()
		return
	}
	entry.status.Status = "finished"
}

// getJob handles GET /jobs/{id}
func (s *Server) getJob(w http.ResponseWriter, id string) {
	s.mu.RLock()
	entry, ok := s.jobs[id]
	var status JobStatus
	if ok {
		status = *entry.status
	}
	s.mu.RUnlock()
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (s *Server) setStatus(jobID, status string) {
	s.mu.Lock()
	if entry, ok := s.jobs[jobID]; ok {
		entry.status.Status = status
	}
	s.mu.Unlock()
}

// markJobError sets the status of the job to error with the provided err.
func (s *Server) markJobError(jobID string, err error) {
	logrus.Errorf("job %s failed: %v", jobID, err)
	s.mu.Lock()
	if entry, ok := s.jobs[jobID]; ok {
		entry.status.Status = "error"
		entry.status.Error = err.Error()
		finished := time.Now()
		entry.status.FinishedAt = &finished
	}
	s.mu.Unlock()
}

// newUUID generates a 32-hex character random ID (not RFC4122 but good enough for internal use).
func newUUID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
