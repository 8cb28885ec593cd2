// Package httpapi exposes the ticket service over HTTP with chi.
package httpapi

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/dmitrijs2005/ticketkeeper/internal/ledger"
	"github.com/dmitrijs2005/ticketkeeper/internal/logging"
	"github.com/dmitrijs2005/ticketkeeper/internal/orchestrator"
	"github.com/dmitrijs2005/ticketkeeper/internal/pricing"
	"github.com/dmitrijs2005/ticketkeeper/internal/qrauth"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/models"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/services"
	"github.com/dmitrijs2005/ticketkeeper/internal/ticketnft"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"
)

type UserService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	Get(ctx context.Context, userID string) (*models.User, error)
	SendVerificationCode(ctx context.Context, userID string) error
	VerifyPhone(ctx context.Context, userID, code string) error
}

type TicketService interface {
	Prices() *pricing.Converter
	Mint(ctx context.Context, userID, to, eventID string) (*orchestrator.Result, error)
	MintAndList(ctx context.Context, userID, to, eventID string, priceUSD decimal.Decimal) (*orchestrator.Result, error)
	List(ctx context.Context, userID string, tokenID *big.Int, priceUSD decimal.Decimal) (*orchestrator.Result, error)
	Unlist(ctx context.Context, userID string, tokenID *big.Int) (*orchestrator.Result, error)
	Buy(ctx context.Context, userID string, tokenID *big.Int) (*orchestrator.Result, error)
	Transfer(ctx context.Context, userID string, tokenID *big.Int, to string) (*orchestrator.Result, error)
	GenerateQR(ctx context.Context, userID string, tokenID *big.Int) (*qrauth.Payload, error)
	ValidateQR(ctx context.Context, userID string, p qrauth.Payload) (*orchestrator.Result, error)
	Submit(ctx context.Context, userID string, op ticketnft.Operation) (*orchestrator.Result, error)
	Ticket(ctx context.Context, tokenID *big.Int) (*ticketnft.TicketRecord, error)
	Tickets(ctx context.Context) ([]*ticketnft.TicketRecord, error)
	MintedTo(ctx context.Context, wallet string) ([]ticketnft.MintedEvent, error)
	LatestBlock(ctx context.Context) (*ledger.BlockInfo, error)
	Block(ctx context.Context, number uint64) (*ledger.BlockInfo, error)
}

type EventService interface {
	Create(ctx context.Context, userID string, in services.EventInput) (*models.Event, error)
	Get(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context) ([]*models.Event, error)
	ListByOrganizer(ctx context.Context, userID string) ([]*models.Event, error)
	Update(ctx context.Context, userID, id string, in services.EventInput) (*models.Event, error)
	Delete(ctx context.Context, userID, id string) error
	ImageUploadURL(ctx context.Context, userID, id string) (*services.ImageUpload, error)
	ImageURL(ctx context.Context, e *models.Event) (string, error)
}

var (
	_ UserService   = (*services.UserService)(nil)
	_ TicketService = (*services.TicketService)(nil)
	_ EventService  = (*services.EventService)(nil)
)

// requestTimeout bounds a whole request; ledger writes wait for two
// confirmations inside it.
const requestTimeout = 5 * time.Minute

type Server struct {
	address     string
	users       UserService
	tickets     TicketService
	events      EventService
	logger      logging.Logger
	jwtSecret   []byte
	corsOrigins []string
}

func NewServer(address string, l logging.Logger, us UserService, ts TicketService, es EventService,
	jwtSecret string, corsOrigins []string) *Server {
	return &Server{
		address:     address,
		logger:      l.With("module", "http_server"),
		users:       us,
		tickets:     ts,
		events:      es,
		jwtSecret:   []byte(jwtSecret),
		corsOrigins: corsOrigins,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.register)
			r.Post("/login", s.login)
			r.Group(func(r chi.Router) {
				r.Use(s.authenticate)
				r.Get("/me", s.me)
				r.Post("/check", s.sendCode)
				r.Post("/validate", s.verifyCode)
			})
		})

		r.Route("/utils", func(r chi.Router) {
			r.Get("/blocks/latest", s.latestBlock)
			r.Get("/blocks/{number}", s.blockByNumber)
		})

		r.Route("/transaction", func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/tickets", s.listTickets)
			r.Post("/tickets/mint", s.mint)
			r.Post("/tickets/mint-and-list", s.mintAndList)
			r.Get("/tickets/{tokenId}", s.getTicket)
			r.Post("/tickets/{tokenId}/list", s.listForSale)
			r.Post("/tickets/{tokenId}/unlist", s.unlist)
			r.Post("/tickets/{tokenId}/buy", s.buy)
			r.Post("/tickets/{tokenId}/transfer", s.transfer)
			r.Post("/tickets/{tokenId}/qr", s.generateQR)
			r.Post("/qr/validate", s.validateQR)
			r.Get("/wallets/{wallet}/tickets", s.walletTickets)
			r.Post("/operations/{kind}", s.submitOperation)
		})

		r.Route("/events", func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/", s.listEvents)
			r.Get("/organizer", s.organizerEvents)
			r.Get("/{id}", s.getEvent)
			r.Post("/", s.createEvent)
			r.Put("/{id}", s.updateEvent)
			r.Delete("/{id}", s.deleteEvent)
			r.Post("/{id}/image", s.eventImageUpload)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{ErrorKind: "ResourceNotFound", Message: "endpoint not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{ErrorKind: "InvalidArgument", Message: "method not allowed"})
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
