// Package httpserver exposes the audit store, the monitor and the operational
// surfaces over HTTP. The same API doubles as the replica transport: the peer
// pulls /v1/store/dump and pushes /v1/store/adopt.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Niyaz-313/trading-bot/internal/audit"
	"github.com/Niyaz-313/trading-bot/internal/health"
	"github.com/Niyaz-313/trading-bot/internal/opslog"
	"github.com/Niyaz-313/trading-bot/internal/query"
	"github.com/Niyaz-313/trading-bot/internal/reconcile"
	"github.com/Niyaz-313/trading-bot/internal/retention"
	"github.com/Niyaz-313/trading-bot/pkg/id"
	logpkg "github.com/Niyaz-313/trading-bot/pkg/log"
)

// Deps are the services the server fronts. Store and Logger are required;
// everything else degrades to 503 on its endpoints when nil.
type Deps struct {
	Store      *audit.Store
	Monitor    *health.Monitor
	Reconciler *reconcile.Reconciler
	Archiver   *retention.Archiver
	OpsLog     *opslog.Log
	Registry   *prometheus.Registry
	Logger     logpkg.Logger

	// AppendsTotal is bumped on successful appends. Optional.
	AppendsTotal prometheus.Counter

	// RetentionMaxAgeDays parameterizes POST /v1/snapshot/prune.
	RetentionMaxAgeDays int
}

type Server struct {
	deps Deps
	srv  *http.Server
	lis  net.Listener
	log  logpkg.Logger
}

func New(deps Deps) *Server {
	mux := http.NewServeMux()
	s := &Server{
		deps: deps,
		srv:  &http.Server{Handler: cors(mux)},
		log:  deps.Logger.WithComponent("http"),
	}
	mux.HandleFunc("/v1/healthz", s.handleHealth)
	mux.HandleFunc("/v1/state", s.handleState)
	mux.HandleFunc("/v1/store/head", s.handleHead)
	mux.HandleFunc("/v1/store/dump", s.handleDump)
	mux.HandleFunc("/v1/store/tail", s.handleTail)
	mux.HandleFunc("/v1/store/records", s.handleRecords)
	mux.HandleFunc("/v1/store/append", s.handleAppend)
	mux.HandleFunc("/v1/store/adopt", s.handleAdopt)
	mux.HandleFunc("/v1/reconcile", s.handleReconcile)
	mux.HandleFunc("/v1/snapshot", s.handleSnapshot)
	mux.HandleFunc("/v1/snapshot/prune", s.handlePrune)
	mux.HandleFunc("/v1/snapshot/list", s.handleSnapshotList)
	mux.HandleFunc("/v1/ops", s.handleOps)
	if deps.Registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}
	return s
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.log.Info("http listening", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler returns the root handler, for tests running against httptest.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	out := map[string]string{"status": "ok"}
	if s.deps.Monitor != nil {
		out["service_state"] = string(s.deps.Monitor.State())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Monitor == nil {
		writeErr(w, http.StatusServiceUnavailable, errors.New("monitor not configured"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(s.deps.Monitor.State())})
}

func (s *Server) handleHead(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"last_sequence_id": s.deps.Store.LastSequenceID(),
		"writer":           s.deps.Store.WriterTag(),
	})
}

// handleDump writes the store as JSONL in store order. The store is read in
// full before the status line goes out: a corrupt record fails the whole
// request with 422 instead of truncating the body at a line boundary, which
// a reconciling peer would parse as a valid shorter history.
func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	records, err := s.deps.Store.ReadAll()
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, audit.ErrCorruptRecord) {
			code = http.StatusUnprocessableEntity
		}
		writeErr(w, code, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	if err := audit.WriteJSONL(w, records); err != nil {
		s.log.Error("dump write failed", logpkg.Err(err))
	}
}

func (s *Server) handleTail(w http.ResponseWriter, r *http.Request) {
	n := 10
	if v := r.URL.Query().Get("n"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	recs, err := s.deps.Store.Tail(n)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// handleRecords scans the store with an optional CEL filter expression.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	filter, err := query.Compile(r.URL.Query().Get("filter"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	sc, err := s.deps.Store.Scan()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	defer sc.Close()
	out := []audit.Record{}
	for sc.Next() {
		if !filter.Match(sc.Record()) {
			continue
		}
		out = append(out, sc.Record())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	if err := sc.Err(); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type appendReq struct {
	EventType string                 `json:"event_type"`
	Payload   map[string]interface{} `json:"payload"`
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req appendReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	rec, err := s.deps.Store.AppendEvent(req.EventType, req.Payload)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, audit.ErrCorruptRecord) {
			code = http.StatusBadRequest
		}
		writeErr(w, code, err)
		return
	}
	if s.deps.AppendsTotal != nil {
		s.deps.AppendsTotal.Inc()
	}
	writeJSON(w, http.StatusCreated, rec)
}

// handleAdopt atomically replaces the store with the posted JSONL sequence.
// Adoption must not lose history: every current sequence id must survive in
// the new contents, either as-is or under a conflict-disambiguated id.
func (s *Server) handleAdopt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	records, err := audit.ReadJSONL(r.Body)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	current, err := s.deps.Store.ReadAll()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if missing := missingIDs(current, records); missing != "" {
		writeErr(w, http.StatusConflict,
			errors.New("adoption would drop local record "+missing))
		return
	}
	if err := s.deps.Store.Rewrite(records); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	s.log.Info("adopted merged history", logpkg.Int("records", len(records)))
	w.WriteHeader(http.StatusNoContent)
}

// missingIDs returns the first current id absent from next. A conflicted id
// survives under "<id>~<tag>", which counts as present.
func missingIDs(current, next []audit.Record) string {
	have := make(map[string]struct{}, len(next))
	for _, rec := range next {
		have[rec.SequenceID] = struct{}{}
		if base := id.Base(rec.SequenceID); base != rec.SequenceID {
			have[base] = struct{}{}
		}
	}
	for _, rec := range current {
		if _, ok := have[rec.SequenceID]; !ok {
			return rec.SequenceID
		}
	}
	return ""
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.deps.Reconciler == nil {
		writeErr(w, http.StatusServiceUnavailable, errors.New("no replica peer configured"))
		return
	}
	rep, err := s.deps.Reconciler.Run(r.Context())
	if err != nil {
		code := http.StatusBadGateway
		if errors.Is(err, reconcile.ErrCorruptInput) {
			code = http.StatusUnprocessableEntity
		}
		writeErr(w, code, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.deps.Archiver == nil {
		writeErr(w, http.StatusServiceUnavailable, errors.New("archiver not configured"))
		return
	}
	arch, err := s.deps.Archiver.Snapshot(r.URL.Query().Get("event_type"))
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"archive": arch.Name,
		"records": arch.Records,
	})
}

func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.deps.Archiver == nil {
		writeErr(w, http.StatusServiceUnavailable, errors.New("archiver not configured"))
		return
	}
	removed, err := s.deps.Archiver.Prune(s.deps.RetentionMaxAgeDays)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if removed == nil {
		removed = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}

func (s *Server) handleSnapshotList(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Archiver == nil {
		writeErr(w, http.StatusServiceUnavailable, errors.New("archiver not configured"))
		return
	}
	archives, err := s.deps.Archiver.List()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]map[string]interface{}, 0, len(archives))
	for _, a := range archives {
		out = append(out, map[string]interface{}{
			"name":     a.Name,
			"taken_at": a.TakenAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOps(w http.ResponseWriter, r *http.Request) {
	if s.deps.OpsLog == nil {
		writeErr(w, http.StatusServiceUnavailable, errors.New("ops journal not configured"))
		return
	}
	opts := opslog.ReadOptions{Limit: 50, Reverse: true}
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			opts.Limit = parsed
		}
	}
	entries, err := s.deps.OpsLog.Read(opts)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []opslog.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
