package api

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/ringdex/ringdex/pkg/app/core/token"
	"github.com/ringdex/ringdex/pkg/app/settle"
	"github.com/ringdex/ringdex/pkg/ring"
)

// Server exposes the settlement relay over REST and WebSocket.
type Server struct {
	app            *settle.App
	router         *mux.Router
	hub            *Hub
	allowedOrigins []string
	log            *zap.SugaredLogger
}

// NewServer creates the API server and hooks settlement events into the
// WebSocket hub.
func NewServer(app *settle.App, allowedOrigins []string, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{
		app:            app,
		router:         mux.NewRouter(),
		hub:            NewHub(log),
		allowedOrigins: allowedOrigins,
		log:            log,
	}
	s.setupRoutes()

	app.OnSettlement = func(res *settle.Result) {
		s.hub.BroadcastToChannel("settlements", SettlementEvent{
			Type:      "settlement",
			RingHash:  res.RingHash.Hex(),
			Valid:     res.Valid,
			Transfers: len(res.Transfers),
			Timestamp: time.Now().UnixMilli(),
		})
	}
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Ring settlement
	api.HandleFunc("/rings", s.handleSubmitRing).Methods("POST")

	// Token allow-list
	api.HandleFunc("/tokens", s.handleGetTokens).Methods("GET")
	api.HandleFunc("/tokens", s.handleRegisterToken).Methods("POST")

	// Balances
	api.HandleFunc("/balances/{address}", s.handleGetBalances).Methods("GET")
	api.HandleFunc("/balances", s.handleCredit).Methods("POST")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the WebSocket hub and blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	handler := c.Handler(s.router)

	s.log.Infow("api_server_listening", "addr", addr)
	return http.ListenAndServe(addr, handler)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleSubmitRing(w http.ResponseWriter, r *http.Request) {
	var req SubmitRingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if len(req.Orders) < 2 {
		respondError(w, http.StatusBadRequest, "ring needs at least two orders", "")
		return
	}
	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid ring owner", err.Error())
		return
	}

	cand := &settle.Candidate{Owner: owner}
	if req.FeeRecipient != "" {
		recipient, err := parseAddress("feeRecipient", req.FeeRecipient)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid fee recipient", err.Error())
			return
		}
		cand.FeeRecipient = recipient
	}
	for i, payload := range req.Orders {
		signed, err := payload.ToSignedOrder()
		if err != nil {
			s.log.Debugw("order_payload_rejected", "position", i, "err", err)
			respondError(w, http.StatusBadRequest, "invalid order payload", err.Error())
			return
		}
		cand.Orders = append(cand.Orders, signed)
	}

	result, err := s.app.SettleRing(r.Context(), cand)
	if err != nil {
		if errors.Is(err, ring.ErrUnsettleable) {
			respondError(w, http.StatusUnprocessableEntity, "ring unsettleable", err.Error())
			return
		}
		s.log.Errorw("settle_ring_failed", "err", err)
		respondError(w, http.StatusInternalServerError, "settlement failed", err.Error())
		return
	}

	respondJSON(w, SubmitRingResponse{
		RingHash:  result.RingHash.Hex(),
		Valid:     result.Valid,
		Fills:     fillInfos(result.Fills),
		Transfers: transferInfos(result.Transfers),
	})
}

func (s *Server) handleGetTokens(w http.ResponseWriter, r *http.Request) {
	tokens := s.app.Tokens().List()
	response := make([]TokenInfo, len(tokens))
	for i, t := range tokens {
		response[i] = TokenInfo{
			Address:  t.Address.Hex(),
			Symbol:   t.Symbol,
			Decimals: t.Decimals,
		}
	}
	respondJSON(w, response)
}

func (s *Server) handleRegisterToken(w http.ResponseWriter, r *http.Request) {
	var req TokenInfo
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	addr, err := parseAddress("token", req.Address)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid token address", err.Error())
		return
	}

	info := &token.Info{Address: addr, Symbol: req.Symbol, Decimals: req.Decimals}
	if err := s.app.Tokens().Register(info); err != nil {
		respondError(w, http.StatusConflict, "token registration failed", err.Error())
		return
	}
	s.log.Infow("token_registered", "token", addr.Hex(), "symbol", req.Symbol)
	respondJSON(w, req)
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	addressStr := vars["address"]
	if !common.IsHexAddress(addressStr) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}
	owner := common.HexToAddress(addressStr)

	balances := s.app.Balances().Balances(owner)
	response := make([]BalanceInfo, 0, len(balances))
	for tok, amount := range balances {
		response = append(response, BalanceInfo{
			Owner:  owner.Hex(),
			Token:  tok.Hex(),
			Amount: amount.String(),
		})
	}
	respondJSON(w, response)
}

func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	var req CreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid owner", err.Error())
		return
	}
	tok, err := parseAddress("token", req.Token)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid token", err.Error())
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		respondError(w, http.StatusBadRequest, "invalid amount", req.Amount)
		return
	}

	if err := s.app.Balances().Credit(owner, tok, amount); err != nil {
		respondError(w, http.StatusInternalServerError, "credit failed", err.Error())
		return
	}
	s.log.Infow("balance_credited", "owner", owner.Hex(), "token", tok.Hex(), "amount", amount.String())
	respondJSON(w, BalanceInfo{
		Owner:  owner.Hex(),
		Token:  tok.Hex(),
		Amount: s.app.Balances().Spendable(owner, tok).String(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helper Functions
// ==============================

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
