package private

import (
	"net/http"

	"github.com/clawrrency/clawrrency/foundation/blockchain/consensus"
	"github.com/clawrrency/clawrrency/foundation/web"
	"go.uber.org/zap"
)

// Config contains all the mandatory systems required by the private
// handlers.
type Config struct {
	Log       *zap.SugaredLogger
	Consensus *consensus.Engine
}

// Routes binds all the private routes.
func Routes(app *web.App, cfg Config) {
	prv := Handlers{
		Log:       cfg.Log,
		Consensus: cfg.Consensus,
	}

	const version = "v1"

	app.Handle(http.MethodPost, version, "/consensus/pre-prepare", prv.PrePrepare)
	app.Handle(http.MethodPost, version, "/consensus/batch-pre-prepare", prv.BatchPrePrepare)
	app.Handle(http.MethodPost, version, "/consensus/prepare", prv.Prepare)
	app.Handle(http.MethodPost, version, "/consensus/commit", prv.Commit)
	app.Handle(http.MethodGet, version, "/consensus/status", prv.Status)
}
