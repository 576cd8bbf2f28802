// Package api exposes a read-only observer surface over the exchange: REST
// snapshots of books, positions and fees, plus a websocket feed of order
// flow. It never sits on the matching path: handlers read the engine's
// post-event snapshot and the fill journal.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"spx/pkg/engine"
	"spx/pkg/storage"
)

// StateSource yields the engine's externally visible state.
type StateSource interface {
	Snapshot() engine.Snapshot
}

// Server handles REST and websocket observers.
type Server struct {
	src     StateSource
	journal *storage.Journal // optional; enables /trades
	hub     *Hub
	router  *mux.Router
	log     *zap.SugaredLogger
}

// NewServer wires the routes. journal may be nil.
func NewServer(src StateSource, journal *storage.Journal, log *zap.SugaredLogger) *Server {
	s := &Server{
		src:     src,
		journal: journal,
		hub:     NewHub(log),
		router:  mux.NewRouter(),
		log:     log,
	}
	s.setupRoutes()
	return s
}

// Hub returns the websocket hub, which the engine uses as its event feed.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/products", s.handleGetProducts).Methods("GET")
	api.HandleFunc("/products/{product}/book", s.handleGetBook).Methods("GET")
	api.HandleFunc("/traders", s.handleGetTraders).Methods("GET")
	api.HandleFunc("/traders/{id}/positions", s.handleGetPositions).Methods("GET")
	api.HandleFunc("/fees", s.handleGetFees).Methods("GET")
	api.HandleFunc("/trades", s.handleGetTrades).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the hub and serves HTTP on addr. It blocks.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	s.log.Infow("api_listening", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

func (s *Server) handleGetProducts(w http.ResponseWriter, r *http.Request) {
	snap := s.src.Snapshot()
	products := make([]string, 0, len(snap.Products))
	for _, p := range snap.Products {
		products = append(products, p.Product)
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["product"]
	for _, p := range s.src.Snapshot().Products {
		if p.Product == name {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	writeError(w, http.StatusNotFound, "unknown product")
}

func (s *Server) handleGetTraders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.src.Snapshot().Traders)
}

func (s *Server) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad trader id")
		return
	}
	for _, t := range s.src.Snapshot().Traders {
		if t.ID == id {
			writeJSON(w, http.StatusOK, t.Positions)
			return
		}
	}
	writeError(w, http.StatusNotFound, "unknown trader")
}

func (s *Server) handleGetFees(w http.ResponseWriter, r *http.Request) {
	snap := s.src.Snapshot()
	writeJSON(w, http.StatusOK, map[string]int64{"total_fees": snap.TotalFees})
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, "journal disabled")
		return
	}
	limit := 100
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	fills, err := s.journal.RecentFills(limit)
	if err != nil {
		s.log.Errorw("journal_read_failed", "err", err)
		writeError(w, http.StatusInternalServerError, "journal read failed")
		return
	}
	writeJSON(w, http.StatusOK, fills)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.src.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"live_traders": snap.LiveTraders,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
