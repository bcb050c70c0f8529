package mid

import (
	"context"
	"expvar"
	"net/http"
	"runtime"

	"github.com/clawrrency/clawrrency/foundation/web"
)

// metricsState contains the global program counters for the application,
// exposed at /debug/vars.
var metricsState = struct {
	gr  *expvar.Int
	req *expvar.Int
	err *expvar.Int
}{
	gr:  expvar.NewInt("goroutines"),
	req: expvar.NewInt("requests"),
	err: expvar.NewInt("errors"),
}

// Metrics updates program counters on every request.
func Metrics() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := handler(ctx, w, r)

			metricsState.req.Add(1)

			if metricsState.req.Value()%100 == 0 {
				metricsState.gr.Set(int64(runtime.NumGoroutine()))
			}

			if err != nil {
				metricsState.err.Add(1)
			}

			return err
		}

		return h
	}

	return m
}
