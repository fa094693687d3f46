package routes

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"lendvault/core"
	"lendvault/native/lending"
)

// adminRoutes exposes the operator surface: height advancement, flow pauses,
// genesis-style credits, and manual oracle overrides.
type adminRoutes struct {
	node         *core.Node
	overrideFeed *lending.ManualFeed
}

func (ar *adminRoutes) mount(r chi.Router) {
	r.Post("/advance", ar.advance)
	r.Post("/pause", ar.pause)
	r.Post("/credit", ar.credit)
	r.Post("/oracle/price", ar.setPrice)
	r.Get("/height", ar.height)
}

type pauseRequest struct {
	Flow   string `json:"flow"`
	Paused bool   `json:"paused"`
}

type priceRequest struct {
	Asset string `json:"asset"`
	Price string `json:"price"`
}

func (ar *adminRoutes) advance(w http.ResponseWriter, r *http.Request) {
	height, err := ar.node.AdvanceHeight()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"height": strconv.FormatUint(height, 10)})
}

func (ar *adminRoutes) height(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"height": strconv.FormatUint(ar.node.Height(), 10)})
}

func (ar *adminRoutes) pause(w http.ResponseWriter, r *http.Request) {
	req := pauseRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if req.Flow == "" {
		writeBadRequest(w, errors.New("flow is required"))
		return
	}
	ar.node.Pauses().Set(req.Flow, req.Paused)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (ar *adminRoutes) credit(w http.ResponseWriter, r *http.Request) {
	req, account, amount, err := decodeAmountRequest(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := ar.node.Credit(req.Asset, account, amount); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (ar *adminRoutes) setPrice(w http.ResponseWriter, r *http.Request) {
	if ar.overrideFeed == nil {
		writeError(w, http.StatusNotImplemented, errors.New("manual price overrides are not enabled"))
		return
	}
	req := priceRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	price, err := parseAmount(req.Price)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if price.Sign() <= 0 {
		writeBadRequest(w, fmt.Errorf("price must be positive"))
		return
	}
	ar.overrideFeed.Set(req.Asset, price, time.Now())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
