package driver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/go-chi/chi/v5"

	"github.com/dloss/linepipe/internal/store"
)

// Metrics exports run counters over a chi HTTP server: VictoriaMetrics
// counters for lines read/produced/dropped/errored, a gauge holding the
// number of Global Store counter keys, and one linepipe_counter{key=...}
// sample per Global Store counter key.
type Metrics struct {
	set *metrics.Set

	linesRead     *metrics.Counter
	linesProduced *metrics.Counter
	linesDropped  *metrics.Counter
	errors        *metrics.Counter

	store *store.Store
}

func NewMetrics(s *store.Store) *Metrics {
	set := metrics.NewSet()
	m := &Metrics{
		set:           set,
		linesRead:     set.NewCounter("linepipe_lines_read_total"),
		linesProduced: set.NewCounter("linepipe_lines_produced_total"),
		linesDropped:  set.NewCounter("linepipe_lines_dropped_total"),
		errors:        set.NewCounter("linepipe_errors_total"),
		store:         s,
	}
	set.NewGauge("linepipe_counters", func() float64 { return float64(len(s.Counters())) })
	return m
}

func (m *Metrics) LineRead()     { m.linesRead.Inc() }
func (m *Metrics) LineProduced() { m.linesProduced.Inc() }
func (m *Metrics) LineDropped()  { m.linesDropped.Inc() }
func (m *Metrics) Errored()      { m.errors.Inc() }

// Serve runs an HTTP server exposing /metrics in Prometheus exposition
// format; it blocks until ctx is cancelled or the server fails.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	r := chi.NewRouter()
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		for k, v := range m.store.Counters() {
			fmt.Fprintf(w, "linepipe_counter{key=%q} %d\n", k, v)
		}
		m.set.WritePrometheus(w)
	})

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	return srv.ListenAndServe()
}
