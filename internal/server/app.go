// Package server initializes and runs the ticket server.
// It wires storage, the ledger stack and the HTTP API, and handles graceful
// shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/ticketkeeper/internal/custody"
	"github.com/dmitrijs2005/ticketkeeper/internal/ledger"
	"github.com/dmitrijs2005/ticketkeeper/internal/logging"
	"github.com/dmitrijs2005/ticketkeeper/internal/orchestrator"
	"github.com/dmitrijs2005/ticketkeeper/internal/pricing"
	"github.com/dmitrijs2005/ticketkeeper/internal/qrauth"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/config"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/services"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/sms"
	"github.com/dmitrijs2005/ticketkeeper/internal/ticketnft"
	"github.com/dmitrijs2005/ticketkeeper/internal/vault"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

type App struct {
	config        *config.Config
	logger        logging.Logger
	db            *sql.DB
	redis         *redis.Client
	gateway       *ledger.Gateway
	userService   *services.UserService
	ticketService *services.TicketService
	eventService  *services.EventService
}

// NewLogger builds the logger selected by LogBackend.
func NewLogger(c *config.Config) (logging.Logger, error) {
	switch c.LogBackend {
	case "zap":
		z, err := logging.NewProductionZap(c.LogLevel)
		if err != nil {
			return nil, err
		}
		return logging.NewZapLogger(z), nil
	case "", "slog":
		return logging.NewJSONSlog(os.Stdout, c.LogLevel), nil
	}
	return nil, fmt.Errorf("unknown log backend %q", c.LogBackend)
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(c)
	if err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger}
	if err := app.init(ctx); err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	var (
		nonces qrauth.NonceStore = qrauth.NewMemoryStore()
		codes  sms.CodeStore     = sms.NewMemoryStore()
	)
	if c.RedisURL != "" {
		opts, err := redis.ParseURL(c.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
		app.redis = redis.NewClient(opts)
		if err := app.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping error: %w", err)
		}
		nonces = qrauth.NewRedisStore(app.redis)
		codes = sms.NewRedisStore(app.redis)
	} else {
		app.logger.Warn(ctx, "REDIS_URL not set, QR nonces and SMS codes are kept in memory")
	}

	v, err := vault.New(c.EncryptionSecret)
	if err != nil {
		return err
	}

	client, err := ledger.Dial(ctx, c.RPCURL)
	if err != nil {
		return err
	}
	gw, err := ledger.New(ctx, client,
		ledger.WithPollInterval(c.PollInterval),
		ledger.WithLogger(app.logger))
	if err != nil {
		client.Close()
		return err
	}
	app.gateway = gw

	custodian, err := app.newCustodian(gw)
	if err != nil {
		return err
	}

	contract := ticketnft.NewContract(ethcommon.HexToAddress(c.ContractAddress), gw)
	orch := orchestrator.New(gw, custodian, contract,
		orchestrator.WithConfirmationTimeout(c.ConfirmationTimeout),
		orchestrator.WithLogger(app.logger),
		orchestrator.WithObserver(func(kind ticketnft.Kind, s orchestrator.State) {
			app.logger.Debug(context.Background(), "operation state", "kind", kind, "state", s)
		}))

	qr := qrauth.New(contract.Address(), orch, nonces,
		qrauth.WithTTL(c.QRTTL),
		qrauth.WithLogger(app.logger))

	rate, err := pricing.ParseRate(c.USDPerCoin)
	if err != nil {
		return err
	}
	prices, err := pricing.NewConverter(rate)
	if err != nil {
		return err
	}

	verifier := sms.NewService(codes, sms.NewLogSender(app.logger),
		sms.WithTTL(c.SMSCodeTTL),
		sms.WithLogger(app.logger))

	app.userService = services.NewUserService(db, rm, v, verifier, c.JWTSecret, c.AccessTokenValidity, app.logger)
	app.ticketService = services.NewTicketService(db, rm, orch, qr, v, prices, app.logger)
	app.eventService = services.NewEventService(db, rm, c, app.logger)

	app.logger.Info(ctx, "ledger connected",
		"chain_id", gw.ChainID().String(),
		"contract", contract.Address().Hex(),
		"custodian", custodian.Address().Hex())
	return nil
}

func (app *App) newCustodian(gw *ledger.Gateway) (*custody.Custodian, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(app.config.CustodianKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid custodian key: %w", err)
	}

	fallback, ok := new(big.Int).SetString(app.config.FallbackGasPriceWei, 10)
	if !ok {
		return nil, fmt.Errorf("invalid fallback gas price %q", app.config.FallbackGasPriceWei)
	}

	return custody.New(gw, gw.SignerFor(key),
		custody.WithFallbackGasPrice(fallback),
		custody.WithConfirmationTimeout(app.config.ConfirmationTimeout),
		custody.WithLogger(app.logger)), nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.HTTPAddr, app.logger,
		app.userService, app.ticketService, app.eventService,
		app.config.JWTSecret, app.config.CORSOrigins)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close()
	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) close() {
	if app.gateway != nil {
		app.gateway.Close()
	}
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if app.db != nil {
		_ = app.db.Close()
	}
}
