package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hotshot-go/hotshot/module/component"
	"github.com/hotshot-go/hotshot/module/irrecoverable"
)

const shutdownTimeout = 5 * time.Second

// Status reports the view and decided view of the node for the health endpoint.
type Status func() (view uint64, decided uint64)

// Server serves the Prometheus metrics of the node on /metrics and its progress on /healthz.
type Server struct {
	*component.ComponentManager
	log    zerolog.Logger
	server *http.Server
}

// NewServer creates a server listening on the port. The profiler endpoints are mounted under
// /debug/pprof/ if enabled.
func NewServer(log zerolog.Logger, port uint, gatherer prometheus.Gatherer, status Status, enableProfiler bool) *Server {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		view, decided := status()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]uint64{"view": view, "decided_view": decided})
	}).Methods(http.MethodGet)
	if enableProfiler {
		router.HandleFunc("/debug/pprof/profile", pprof.Profile)
		router.HandleFunc("/debug/pprof/trace", pprof.Trace)
		router.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)
	}

	s := &Server{
		log: log.With().Str("component", "metrics_server").Logger(),
		server: &http.Server{
			Addr:              ":" + strconv.Itoa(int(port)),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	s.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(s.serve).
		Build()
	return s
}

func (s *Server) serve(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		ctx.Throw(err)
		return
	}
	s.log.Info().Str("address", listener.Addr().String()).Msg("metrics server started")
	ready()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	if err := s.server.Serve(listener); err != nil {
		// http.ErrServerClosed is returned when Close or Shutdown is called
		if errors.Is(err, http.ErrServerClosed) {
			s.log.Debug().Err(err).Msg("metrics server shutdown")
			return
		}
		s.log.Err(err).Msg("metrics server failed")
	}
}
