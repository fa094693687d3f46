package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"lendvault/core"
	"lendvault/crypto"
)

const requestBodyLimit = 1 << 20 // 1 MiB

// lendingRoutes serves the venue's lending operations straight off the node.
type lendingRoutes struct {
	node *core.Node
}

func (lr *lendingRoutes) mount(r chi.Router) {
	r.Get("/markets", lr.listMarkets)
	r.Get("/markets/{asset}", lr.getMarket)
	r.Get("/positions/{asset}/{account}", lr.getPosition)
	r.Get("/accounts/{account}/liquidity", lr.getLiquidity)
	r.Post("/supply", lr.supply)
	r.Post("/withdraw", lr.withdraw)
	r.Post("/borrow", lr.borrow)
	r.Post("/repay", lr.repay)
	r.Post("/liquidate", lr.liquidate)
}

type amountRequest struct {
	Asset   string `json:"asset"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type liquidateRequest struct {
	Liquidator      string `json:"liquidator"`
	Borrower        string `json:"borrower"`
	RepayAsset      string `json:"repay_asset"`
	CollateralAsset string `json:"collateral_asset"`
	Amount          string `json:"amount"`
}

type marketResponse struct {
	Asset            string `json:"asset"`
	Cash             string `json:"cash"`
	TotalBorrows     string `json:"total_borrows"`
	TotalShares      string `json:"total_shares"`
	BorrowIndex      string `json:"borrow_index"`
	ExchangeRate     string `json:"exchange_rate"`
	UtilizationRate  string `json:"utilization_rate"`
	BorrowRate       string `json:"borrow_rate"`
	SupplyRate       string `json:"supply_rate"`
	CollateralFactor string `json:"collateral_factor"`
}

type positionResponse struct {
	Asset         string `json:"asset"`
	Shares        string `json:"shares"`
	SupplyBalance string `json:"supply_balance"`
	BorrowBalance string `json:"borrow_balance"`
}

type liquidityResponse struct {
	Liquidity string `json:"liquidity"`
	Shortfall string `json:"shortfall"`
}

func marketPayload(m core.MarketSnapshot) marketResponse {
	return marketResponse{
		Asset:            m.Asset,
		Cash:             m.Cash.String(),
		TotalBorrows:     m.TotalBorrows.String(),
		TotalShares:      m.TotalShares.String(),
		BorrowIndex:      m.BorrowIndex.String(),
		ExchangeRate:     m.ExchangeRate.String(),
		UtilizationRate:  m.UtilizationRate.String(),
		BorrowRate:       m.BorrowRate.String(),
		SupplyRate:       m.SupplyRate.String(),
		CollateralFactor: m.CollateralFactor.String(),
	}
}

func (lr *lendingRoutes) listMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := lr.node.Markets()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	payload := make([]marketResponse, 0, len(markets))
	for _, market := range markets {
		payload = append(payload, marketPayload(market))
	}
	writeJSON(w, http.StatusOK, payload)
}

func (lr *lendingRoutes) getMarket(w http.ResponseWriter, r *http.Request) {
	market, err := lr.node.Market(chi.URLParam(r, "asset"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, marketPayload(market))
}

func (lr *lendingRoutes) getPosition(w http.ResponseWriter, r *http.Request) {
	account, err := decodeAccount(chi.URLParam(r, "account"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	position, err := lr.node.Position(chi.URLParam(r, "asset"), account)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, positionResponse{
		Asset:         position.Asset,
		Shares:        position.Shares.String(),
		SupplyBalance: position.SupplyBalance.String(),
		BorrowBalance: position.BorrowBalance.String(),
	})
}

func (lr *lendingRoutes) getLiquidity(w http.ResponseWriter, r *http.Request) {
	account, err := decodeAccount(chi.URLParam(r, "account"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	liquidity, shortfall, err := lr.node.AccountLiquidity(account)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, liquidityResponse{
		Liquidity: liquidity.String(),
		Shortfall: shortfall.String(),
	})
}

func (lr *lendingRoutes) supply(w http.ResponseWriter, r *http.Request) {
	req, account, amount, err := decodeAmountRequest(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	minted, err := lr.node.Deposit(req.Asset, account, amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"shares": minted.String()})
}

func (lr *lendingRoutes) withdraw(w http.ResponseWriter, r *http.Request) {
	req, account, amount, err := decodeAmountRequest(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := lr.node.Withdraw(req.Asset, account, amount); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (lr *lendingRoutes) borrow(w http.ResponseWriter, r *http.Request) {
	req, account, amount, err := decodeAmountRequest(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := lr.node.Borrow(req.Asset, account, amount); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (lr *lendingRoutes) repay(w http.ResponseWriter, r *http.Request) {
	req, account, amount, err := decodeAmountRequest(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	paid, err := lr.node.Repay(req.Asset, account, amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"paid": paid.String()})
}

func (lr *lendingRoutes) liquidate(w http.ResponseWriter, r *http.Request) {
	req := liquidateRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	liquidator, err := decodeAccount(req.Liquidator)
	if err != nil {
		writeBadRequest(w, fmt.Errorf("liquidator: %w", err))
		return
	}
	borrower, err := decodeAccount(req.Borrower)
	if err != nil {
		writeBadRequest(w, fmt.Errorf("borrower: %w", err))
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	seized, err := lr.node.Liquidate(liquidator, borrower, req.RepayAsset, req.CollateralAsset, amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"seized": seized.String()})
}

func decodeAmountRequest(r *http.Request) (amountRequest, crypto.Address, *big.Int, error) {
	req := amountRequest{}
	if err := decodeBody(r, &req); err != nil {
		return req, crypto.Address{}, nil, err
	}
	account, err := decodeAccount(req.Account)
	if err != nil {
		return req, crypto.Address{}, nil, err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return req, crypto.Address{}, nil, err
	}
	return req, account, amount, nil
}

func decodeBody(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("missing request body")
	}
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, requestBodyLimit))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(data) == 0 {
		return errors.New("request body is empty")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func decodeAccount(raw string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return crypto.Address{}, errors.New("account is required")
	}
	return crypto.DecodeAddress(trimmed)
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("amount is required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}
