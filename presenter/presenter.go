package presenter

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/logging"
	httpmiddleware "github.com/fedbridge/bridge-node/presenter/http/middleware"
	"github.com/fedbridge/bridge-node/presenter/http/render"
	"github.com/fedbridge/bridge-node/repository"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Presenter is the read-only HTTP surface over the node's state. It never
// mutates anything: all writes go through the extrinsic pool.
type Presenter struct {
	logger logging.Logger
	repo   *repository.Repo
	root   chi.Router
}

func NewPresenter(logger logging.Logger, repo *repository.Repo) *Presenter {
	p := &Presenter{
		logger: logger,
		repo:   repo,
		root:   chi.NewMux(),
	}
	p.root.Use(middleware.Throttle(5))
	p.root.Use(middleware.RequestID)
	p.root.Use(httpmiddleware.NewLoggerMiddleware(logger))
	p.root.Use(httpmiddleware.Recoverer)
	p.root.Get("/health", p.wrapJSONHandler(p.GetHealth))
	p.root.Handle("/metrics", promhttp.Handler())
	p.root.Get("/bridge/active", p.wrapJSONHandler(p.GetActiveRequest))
	p.root.Get("/bridge/queue", p.wrapJSONHandler(p.GetRequestQueue))
	p.root.Get("/bridge/settled", p.wrapJSONHandler(p.GetSettledTransactions))
	p.root.Get("/bridge/settled/{txID:[0-9]+}", p.wrapJSONHandler(p.GetSettledTransaction))
	p.root.Get("/events/range", p.wrapJSONHandler(p.GetActiveRange))
	p.root.Get("/events/processed/{txHash:0x[0-9a-fA-F]{64}}", p.wrapJSONHandler(p.GetProcessedEvent))
	p.root.Get("/checker/pending", p.wrapJSONHandler(p.GetCheckerPending))
	p.root.Get("/offences", p.wrapJSONHandler(p.GetOffences))
	return p
}

func (p *Presenter) Serve(addr string) error {
	p.logger.WithField("addr", addr).Info("starting presenter service")
	return http.ListenAndServe(addr, p.root)
}

// Handler exposes the router, primarily for tests.
func (p *Presenter) Handler() http.Handler {
	return p.root
}

func (p *Presenter) wrapJSONHandler(handler func(r *http.Request) (interface{}, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := handler(r)
		if errors.Is(err, db.ErrNotFound) {
			render.NotFound(w, r, "not found")
			return
		}
		if err != nil {
			render.Error(w, r, err)
			return
		}
		render.JSON(w, r, http.StatusOK, res)
	}
}

func (p *Presenter) GetHealth(_ *http.Request) (interface{}, error) {
	return HealthResult{Status: "ok"}, nil
}

func (p *Presenter) GetActiveRequest(r *http.Request) (interface{}, error) {
	return p.repo.ActiveRequest.Get(r.Context())
}

func (p *Presenter) GetRequestQueue(r *http.Request) (interface{}, error) {
	return p.repo.RequestQueue.List(r.Context())
}

func (p *Presenter) GetSettledTransactions(r *http.Request) (interface{}, error) {
	return p.repo.SettledTransactions.List(r.Context(), parseLimit(r))
}

func (p *Presenter) GetSettledTransaction(r *http.Request) (interface{}, error) {
	txID, err := strconv.ParseUint(chi.URLParam(r, "txID"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("can't parse txID: %w", err)
	}
	return p.repo.SettledTransactions.GetByTxID(r.Context(), uint32(txID))
}

func (p *Presenter) GetActiveRange(r *http.Request) (interface{}, error) {
	ctx := r.Context()
	res := ActiveRangeResult{}
	active, err := p.repo.ActiveRange.Get(ctx)
	if err == nil {
		res.Range = active
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}
	res.BlockVotes, err = p.repo.BlockVotes.List(ctx)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Presenter) GetProcessedEvent(r *http.Request) (interface{}, error) {
	txHash := common.HexToHash(chi.URLParam(r, "txHash"))
	return p.repo.ProcessedEvents.GetByTxHash(r.Context(), txHash)
}

func (p *Presenter) GetCheckerPending(r *http.Request) (interface{}, error) {
	ctx := r.Context()
	unchecked, err := p.repo.UncheckedEvents.List(ctx)
	if err != nil {
		return nil, err
	}
	checks, err := p.repo.EventChecks.List(ctx)
	if err != nil {
		return nil, err
	}
	return CheckerPendingResult{Unchecked: unchecked, Checks: checks}, nil
}

func (p *Presenter) GetOffences(r *http.Request) (interface{}, error) {
	return p.repo.Offences.List(r.Context(), parseLimit(r))
}

func parseLimit(r *http.Request) uint {
	limit, err := strconv.ParseUint(r.URL.Query().Get("limit"), 10, 32)
	if err != nil || limit == 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return uint(limit)
}
