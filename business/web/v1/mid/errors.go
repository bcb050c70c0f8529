package mid

import (
	"context"
	"net/http"

	v1 "github.com/clawrrency/clawrrency/business/web/v1"
	"github.com/clawrrency/clawrrency/foundation/web"
	"go.uber.org/zap"
)

// Errors handles errors coming out of the call chain. It detects normal
// application errors, which are used to respond to the client in a
// uniform way, and write those out through the response and logs. Any
// error that is not a RequestError or a shutdown signal is considered an
// unexpected fault and produces a 500 without leaking its message.
func Errors(log *zap.SugaredLogger) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			v, err := web.GetValues(ctx)
			if err != nil {
				return web.NewShutdownError("web value missing from context")
			}

			if err := handler(ctx, w, r); err != nil {
				log.Errorw("request error", "traceid", v.TraceID, "ERROR", err)

				if web.IsShutdown(err) {
					return err
				}

				var reqErr *v1.RequestError
				status := http.StatusInternalServerError
				message := "internal server error"
				if ok := asRequestError(err, &reqErr); ok {
					status = reqErr.Status
					message = reqErr.Error()
				}

				if err := web.Respond(ctx, w, v1.ErrorResponse{Error: message}, status); err != nil {
					return err
				}
			}

			return nil
		}

		return h
	}

	return m
}

func asRequestError(err error, target **v1.RequestError) bool {
	re, ok := err.(*v1.RequestError)
	if !ok {
		return false
	}
	*target = re
	return true
}
