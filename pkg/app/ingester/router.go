package ingester

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/ledger-ingest/pkg/app/errors"
	apphttp "github.com/chainsafe/ledger-ingest/pkg/app/http"
	"github.com/chainsafe/ledger-ingest/pkg/db"
)

const (
	defaultHTTPMiddlewareTimeout = 60 * time.Second
	defaultHTTPReadTimeout       = 15 * time.Second
	defaultHTTPWriteTimeout      = 15 * time.Second
	defaultHTTPIdleTimeout       = 60 * time.Second
)

// CheckpointLister lists the stored checkpoints of every address
type CheckpointLister interface {
	ListCheckpoints(ctx context.Context) ([]db.CheckpointInfo, error)
}

type jobView struct {
	JobStatus
	Checkpoint *db.CheckpointInfo `json:"checkpoint,omitempty"`
}

type handler struct {
	board       *statusBoard
	checkpoints CheckpointLister
	logger      *zap.Logger
}

func newRouter(board *statusBoard, checkpoints CheckpointLister, logger *zap.Logger) http.Handler {
	h := &handler{board: board, checkpoints: checkpoints, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultHTTPMiddlewareTimeout))
	r.Use(requestLogger(logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/ready", func(w http.ResponseWriter, _ *http.Request) {
		if !board.isReady() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT_READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/jobs", apphttp.HandleError(h.listJobs))
		r.Get("/jobs/{name}", apphttp.HandleError(h.getJob))
		r.Get("/checkpoints", apphttp.HandleError(h.listCheckpoints))
	})

	return r
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  defaultHTTPReadTimeout,
		WriteTimeout: defaultHTTPWriteTimeout,
		IdleTimeout:  defaultHTTPIdleTimeout,
	}
}

// requestLogger writes one access log line per request
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

func (h *handler) checkpointsByAddress(ctx context.Context) (map[string]db.CheckpointInfo, error) {
	list, err := h.checkpoints.ListCheckpoints(ctx)
	if err != nil {
		return nil, apperrors.StorageFailureError(err, "list checkpoints")
	}
	out := make(map[string]db.CheckpointInfo, len(list))
	for _, cp := range list {
		out[string(cp.Style)+"/"+cp.Address] = cp
	}
	return out, nil
}

func (h *handler) view(st JobStatus, cps map[string]db.CheckpointInfo) jobView {
	v := jobView{JobStatus: st}
	if cp, ok := cps[st.Style+"/"+st.Address]; ok {
		v.Checkpoint = &cp
	}
	return v
}

func (h *handler) listJobs(w http.ResponseWriter, r *http.Request) error {
	cps, err := h.checkpointsByAddress(r.Context())
	if err != nil {
		h.logger.Error("Failed to list checkpoints", zap.Error(err))
		return err
	}
	statuses := h.board.list()
	views := make([]jobView, 0, len(statuses))
	for _, st := range statuses {
		views = append(views, h.view(st, cps))
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]any{"jobs": views})
	return nil
}

func (h *handler) getJob(w http.ResponseWriter, r *http.Request) error {
	name := chi.URLParam(r, "name")
	st, ok := h.board.get(name)
	if !ok {
		return apperrors.NotFoundError(nil, "unknown job "+name)
	}
	cps, err := h.checkpointsByAddress(r.Context())
	if err != nil {
		h.logger.Error("Failed to list checkpoints", zap.Error(err), zap.String("job", name))
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, h.view(st, cps))
	return nil
}

func (h *handler) listCheckpoints(w http.ResponseWriter, r *http.Request) error {
	list, err := h.checkpoints.ListCheckpoints(r.Context())
	if err != nil {
		h.logger.Error("Failed to list checkpoints", zap.Error(err))
		return apperrors.StorageFailureError(err, "list checkpoints")
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]any{"checkpoints": list})
	return nil
}
