package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/http/middleware"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/monitoring"
)

func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", s.healthHandler.HandleHealth())

	mux.HandleFunc("/items", s.handleItemCollection)
	mux.HandleFunc("/items/", s.handleItemRoutes)
	mux.HandleFunc("/offers/", s.handleOfferRoutes)
	mux.HandleFunc("/transactions", s.handleTransactionCollection)
	mux.HandleFunc("/transactions/", s.handleTransactionRoutes)
	mux.HandleFunc("/webhooks/payments", s.handlePaymentWebhook)
	mux.HandleFunc("/admin/sweep", s.handleSweep)
	mux.HandleFunc("/admin/settings/commission", s.handleCommissionSettings)

	handler := middleware.NewRecoveryMiddleware(s.logger)(mux)
	handler = middleware.NewLoggingMiddleware(s.logger)(handler)
	handler = middleware.NewIdentityMiddleware()(handler)
	handler = monitoring.WrapHandler(handler)
	handler = s.corsMiddleware(handler)
	handler = s.timeoutMiddleware(handler)

	return handler
}

func (s *Server) handleItemCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.itemHandler.HandleCreateItem(w, r)
	case http.MethodGet:
		s.itemHandler.HandleListItems(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleItemRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/items/")
	parts := strings.Split(path, "/")

	if len(parts) == 1 && parts[0] != "" {
		if r.Method == http.MethodGet {
			s.itemHandler.HandleGetItem(w, r, parts[0])
			return
		}
	} else if len(parts) == 2 && parts[0] != "" {
		itemID := parts[0]
		switch {
		case parts[1] == "bids" && r.Method == http.MethodGet:
			s.itemHandler.HandleListBids(w, r, itemID)
			return
		case parts[1] == "bids" && r.Method == http.MethodPost:
			s.itemHandler.HandlePlaceBid(w, r, itemID)
			return
		case parts[1] == "offers" && r.Method == http.MethodGet:
			s.itemHandler.HandleListOffers(w, r, itemID)
			return
		case parts[1] == "offers" && r.Method == http.MethodPost:
			s.itemHandler.HandleCreateOffer(w, r, itemID)
			return
		case parts[1] == "accept-bid" && r.Method == http.MethodPost:
			s.itemHandler.HandleAcceptBid(w, r, itemID)
			return
		}
	}

	http.NotFound(w, r)
}

func (s *Server) handleOfferRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/offers/")
	parts := strings.Split(path, "/")

	if len(parts) == 2 && parts[0] != "" && r.Method == http.MethodPost {
		offerID := parts[0]
		switch parts[1] {
		case "accept":
			s.offerHandler.HandleAccept(w, r, offerID)
			return
		case "reject":
			s.offerHandler.HandleReject(w, r, offerID)
			return
		}
	}

	http.NotFound(w, r)
}

func (s *Server) handleTransactionCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.transactionHandler.HandleList(w, r)
		return
	}
	http.NotFound(w, r)
}

func (s *Server) handleTransactionRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/transactions/")
	parts := strings.Split(path, "/")

	if len(parts) == 1 && parts[0] != "" {
		if r.Method == http.MethodGet {
			s.transactionHandler.HandleGet(w, r, parts[0])
			return
		}
	} else if len(parts) == 2 && parts[0] != "" && r.Method == http.MethodPost {
		transactionID := parts[0]
		switch parts[1] {
		case "pay":
			s.transactionHandler.HandlePay(w, r, transactionID)
			return
		case "checkout":
			s.transactionHandler.HandleCheckout(w, r, transactionID)
			return
		case "ship":
			s.transactionHandler.HandleShip(w, r, transactionID)
			return
		case "deliver":
			s.transactionHandler.HandleDeliver(w, r, transactionID)
			return
		case "confirm":
			s.transactionHandler.HandleConfirmDelivery(w, r, transactionID)
			return
		case "cancel":
			s.transactionHandler.HandleCancel(w, r, transactionID)
			return
		case "dispute":
			s.transactionHandler.HandleDispute(w, r, transactionID)
			return
		}
	}

	http.NotFound(w, r)
}

func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	s.webhookHandler.HandlePaymentEvent(w, r)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	s.sweepHandler.HandleSweep(w, r)
}

func (s *Server) handleCommissionSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.adminHandler.HandleGetCommissionRates(w, r)
	case http.MethodPut:
		s.adminHandler.HandleUpdateCommissionRates(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-User-ID, X-User-Role")
		w.Header().Set("Access-Control-Expose-Headers", "Link")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Max-Age", "300")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.TimeoutHandler(next, 90*time.Second, "Request timeout")
}
