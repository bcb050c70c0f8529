package public

import (
	"net/http"

	"github.com/clawrrency/clawrrency/foundation/blockchain/consensus"
	"github.com/clawrrency/clawrrency/foundation/blockchain/database"
	"github.com/clawrrency/clawrrency/foundation/blockchain/genesis"
	"github.com/clawrrency/clawrrency/foundation/blockchain/identity"
	"github.com/clawrrency/clawrrency/foundation/blockchain/skills"
	"github.com/clawrrency/clawrrency/foundation/events"
	"github.com/clawrrency/clawrrency/foundation/nameservice"
	"github.com/clawrrency/clawrrency/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Config contains all the mandatory systems required by the public
// handlers.
type Config struct {
	Log       *zap.SugaredLogger
	Gen       genesis.Genesis
	Ledger    *database.Ledger
	Identity  *identity.Registry
	Market    *skills.Market
	Consensus *consensus.Engine
	NS        *nameservice.NameService
	Evts      *events.Events
}

// Routes binds all the public routes.
func Routes(app *web.App, cfg Config) {
	pbl := Handlers{
		Log:       cfg.Log,
		Gen:       cfg.Gen,
		Ledger:    cfg.Ledger,
		Identity:  cfg.Identity,
		Market:    cfg.Market,
		Consensus: cfg.Consensus,
		NS:        cfg.NS,
		Evts:      cfg.Evts,
		WS:        websocket.Upgrader{},
	}

	const version = "v1"

	app.Handle(http.MethodGet, version, "/genesis", pbl.Genesis)
	app.Handle(http.MethodGet, version, "/accounts", pbl.Accounts)
	app.Handle(http.MethodGet, version, "/accounts/:account", pbl.Accounts)
	app.Handle(http.MethodGet, version, "/tx/history/:account", pbl.TxHistory)
	app.Handle(http.MethodPost, version, "/tx/submit", pbl.TxSubmit)
	app.Handle(http.MethodPost, version, "/identity/wallets", pbl.IdentityCreateWallet)
	app.Handle(http.MethodGet, version, "/identity", pbl.Identities)
	app.Handle(http.MethodGet, version, "/identity/:account", pbl.Identities)
	app.Handle(http.MethodPost, version, "/identity/register", pbl.IdentityRegister)
	app.Handle(http.MethodPost, version, "/identity/reputation", pbl.IdentityReputation)
	app.Handle(http.MethodGet, version, "/skills", pbl.SkillsList)
	app.Handle(http.MethodPost, version, "/skills", pbl.SkillCreate)
	app.Handle(http.MethodGet, version, "/skills/:id", pbl.SkillGet)
	app.Handle(http.MethodPost, version, "/skills/list", pbl.SkillListCreate)
	app.Handle(http.MethodPost, version, "/skills/purchase", pbl.SkillPurchase)
	app.Handle(http.MethodPost, version, "/skills/review", pbl.SkillReview)
	app.Handle(http.MethodGet, version, "/events", pbl.Events)
}
