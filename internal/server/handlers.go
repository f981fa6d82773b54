package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/survey-sampler/internal/model"
	"github.com/sells-group/survey-sampler/internal/report"
	"github.com/sells-group/survey-sampler/internal/sampling"
	"github.com/sells-group/survey-sampler/internal/store"
)

const (
	runIDHeader = "X-Run-ID"
	seedHeader  = "X-Sample-Seed"
	xlsxType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var errNoStore = errors.New("run history store not configured")

// sampleRequest is the body of POST /v1/sample. Params fields that are
// omitted keep the server defaults.
type sampleRequest struct {
	Input  string          `json:"input"`
	Sites  []model.Site    `json:"sites"`
	Params json.RawMessage `json:"params"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxBodyMB > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxBodyMB)<<20)
	}

	var req sampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	p, err := s.params(req.Params)
	if err != nil {
		writeErr(w, err)
		return
	}
	input := req.Input
	if input == "" {
		input = "api"
	}

	var (
		res *model.Result
		run *model.Run
	)
	if r.URL.Query().Get("record") == "true" {
		if s.store == nil {
			writeErr(w, errNoStore)
			return
		}
		run, res, err = store.RecordRun(r.Context(), s.store, input, req.Sites, p)
	} else {
		res, err = sampling.Run(req.Sites, p)
	}
	if err != nil {
		writeErr(w, err)
		return
	}

	if run != nil {
		w.Header().Set(runIDHeader, run.ID)
	}
	w.Header().Set(seedHeader, strconv.FormatUint(res.Seed, 10))

	if r.URL.Query().Get("format") == "xlsx" {
		w.Header().Set("Content-Type", xlsxType)
		w.Header().Set("Content-Disposition", `attachment; filename="sample.xlsx"`)
		meta := report.Meta{Input: input, GeneratedAt: s.now()}
		if err := report.WriteWorkbook(w, res, meta); err != nil {
			zap.L().Error("server: write workbook", zap.Error(err))
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// params overlays the request params onto the server defaults.
func (s *Server) params(raw json.RawMessage) (model.Params, error) {
	p := s.defaults
	if p.Seed != nil {
		seed := *p.Seed
		p.Seed = &seed
	}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &p); err != nil {
			return p, eris.Wrap(sampling.ErrInvalidParams, "params: "+err.Error())
		}
	}
	mode, err := sampling.ParseCapacityMode(string(p.CapacityMode))
	if err != nil {
		return p, err
	}
	p.CapacityMode = mode
	return p, nil
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeErr(w, errNoStore)
		return
	}
	q := r.URL.Query()
	filter := store.RunFilter{
		Status: model.RunStatus(q.Get("status")),
		Input:  q.Get("input"),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeErr(w, err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeErr(w, errNoStore)
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListAllocations(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeErr(w, errNoStore)
		return
	}
	allocs, err := s.store.ListAllocations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if allocs == nil {
		allocs = []model.Allocation{}
	}
	writeJSON(w, http.StatusOK, allocs)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, eris.Errorf("invalid integer %q", v)
	}
	return n, nil
}

// writeErr maps sentinel errors to status codes.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sampling.ErrInvalidParams), errors.Is(err, sampling.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrRunNotFound):
		writeError(w, http.StatusNotFound, "run not found")
	case errors.Is(err, errNoStore):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		zap.L().Error("server: request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("server: encode response", zap.Error(err))
	}
}
