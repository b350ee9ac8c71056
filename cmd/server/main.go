package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v2"

	"github.com/cutflow/cutflow-backend/internal/config"
	"github.com/cutflow/cutflow-backend/internal/db"
	"github.com/cutflow/cutflow-backend/internal/domain/valueobject"
	"github.com/cutflow/cutflow-backend/internal/goroutine"
	httpHandlers "github.com/cutflow/cutflow-backend/internal/http/handlers"
	httpRouter "github.com/cutflow/cutflow-backend/internal/http/router"
	"github.com/cutflow/cutflow-backend/internal/logger"
	"github.com/cutflow/cutflow-backend/internal/payment"
	"github.com/cutflow/cutflow-backend/internal/pkg/outbound"
	"github.com/cutflow/cutflow-backend/internal/repository"
	"github.com/cutflow/cutflow-backend/internal/security"
	"github.com/cutflow/cutflow-backend/internal/service"
	"github.com/cutflow/cutflow-backend/internal/storage"
	"github.com/cutflow/cutflow-backend/internal/ws"
	"github.com/cutflow/cutflow-backend/internal/youtube"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("main: %v", err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:   "cutflow",
		Usage:  "API маркетплейса монтажа видео",
		Action: serve,
		Flags:  serveFlags,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "применить миграции и запустить HTTP сервер",
				Flags:  serveFlags,
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "только применить миграции",
				Action: migrate,
			},
			{
				Name:   "create-admin",
				Usage:  "создать администратора для разбора споров",
				Flags:  createAdminFlags,
				Action: createAdmin,
			},
		},
	}
}

var serveFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:    "skip-migrations",
		Usage:   "не применять миграции при старте",
		EnvVars: []string{"SKIP_MIGRATIONS"},
	},
}

var createAdminFlags = []cli.Flag{
	&cli.StringFlag{Name: "email", Usage: "email администратора", Required: true},
	&cli.StringFlag{Name: "password", Usage: "пароль", Required: true, EnvVars: []string{"ADMIN_PASSWORD"}},
	&cli.StringFlag{Name: "name", Usage: "отображаемое имя", Value: "Администратор"},
}

// bootstrap загружает конфигурацию, настраивает логгер и открывает базу.
func bootstrap(ctx context.Context) (*config.Config, *sqlx.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	if cfg.IsProduction() {
		logger.Init("info")
	} else {
		logger.Init("debug")
		logger.SetTextFormatter()
	}

	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return cfg, dbConn, nil
}

func migrate(c *cli.Context) error {
	_, dbConn, err := bootstrap(c.Context)
	if err != nil {
		return err
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(dbConn); err != nil {
		return err
	}
	version, err := db.MigrationVersion(dbConn)
	if err != nil {
		return err
	}
	logger.Log.WithField("version", version).Info("миграции применены")
	return nil
}

func createAdmin(c *cli.Context) error {
	_, dbConn, err := bootstrap(c.Context)
	if err != nil {
		return err
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(dbConn); err != nil {
		return err
	}

	// токены администратору выдаёт обычный вход
	auth := service.NewAuthService(repository.NewUserRepository(dbConn), nil)
	admin, err := auth.CreateAdmin(c.Context, service.RegisterInput{
		Email:       c.String("email"),
		Password:    c.String("password"),
		DisplayName: c.String("name"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "администратор %s создан (%s)\n", admin.Email, admin.ID)
	return nil
}

func serve(c *cli.Context) error {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, dbConn, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer safeClose(dbConn)

	if !c.Bool("skip-migrations") {
		if err := db.RunMigrations(dbConn); err != nil {
			return err
		}
	}

	// Вспомогательные сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	cipher, err := security.NewTokenCipher(cfg.TokenEncryptionKey)
	if err != nil {
		return err
	}
	depositPolicy, err := valueobject.NewDepositPolicy(cfg.Deposit.Percent, cfg.Deposit.Minimum, cfg.Deposit.Window)
	if err != nil {
		return err
	}
	videoStorage, uploads, err := newVideoStorage(cfg)
	if err != nil {
		return err
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	orderRepo := repository.NewOrderRepository(dbConn)
	appRepo := repository.NewApplicationRepository(dbConn)
	walletRepo := repository.NewWalletRepository(dbConn)
	paymentRepo := repository.NewPaymentRepository(dbConn)
	deliveryRepo := repository.NewDeliveryRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	youtubeRepo := repository.NewYouTubeRepository(dbConn)
	orderReader := orderReads{OrderRepository: orderRepo, OrderHistoryRepository: repository.NewOrderHistoryRepository(dbConn)}
	store := repository.NewStore(dbConn)

	// Внешние провайдеры.
	outboundOpts := outbound.Options{RequestsPerSecond: 10, MaxRetries: 3, Timeout: 15 * time.Second}
	razorpay := payment.NewRazorpay(payment.RazorpayConfig{
		KeyID:         cfg.Razorpay.KeyID,
		KeySecret:     cfg.Razorpay.KeySecret,
		WebhookSecret: cfg.Razorpay.WebhookSecret,
		BaseURL:       cfg.Razorpay.BaseURL,
		Currency:      cfg.Razorpay.Currency,
	}, outboundOpts)
	stripe := payment.NewStripe(payment.StripeConfig{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		BaseURL:       cfg.Stripe.BaseURL,
		Currency:      cfg.Stripe.Currency,
	}, outboundOpts)
	googleOAuth := youtube.NewClient(youtube.Config{
		ClientID:     cfg.YouTube.ClientID,
		ClientSecret: cfg.YouTube.ClientSecret,
		RedirectURL:  cfg.YouTube.RedirectURL,
	}, outboundOpts)

	// Сервисы. Хаб получает проверку подписок после создания OrderService.
	hub := ws.NewHub(nil)
	notificationService := service.NewNotificationService(notificationRepo, hub)
	orderService := service.NewOrderService(store, orderReader, appRepo, notificationService, depositPolicy)
	hub.SetAccess(orderService)

	authService := service.NewAuthService(userRepo, tokenManager)
	walletService := service.NewWalletService(walletRepo)
	paymentService := service.NewPaymentService(store, paymentRepo, []payment.Gateway{razorpay, stripe}, razorpay,
		payment.NewReplayGuard(24*time.Hour, time.Hour), notificationService)
	deliveryService := service.NewDeliveryService(orderService, orderReader, deliveryRepo, videoStorage, cfg.Storage.SignedURLTTL)
	invoiceService := service.NewInvoiceService(orderRepo, userRepo, cfg.Razorpay.Currency)
	youtubeService := service.NewYouTubeService(youtubeRepo, googleOAuth, cipher, tokenManager)

	// Фоновое закрытие откликов с просроченным депозитом.
	goroutine.Every(ctx, "deposit_sweeper", cfg.Deposit.SweepInterval, func(ctx context.Context) {
		if _, err := orderService.SweepOverdueDeposits(ctx); err != nil {
			logger.Component("deposit_sweeper").WithError(err).Error("не удалось закрыть просроченные отклики")
		}
	})

	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Auth:          httpHandlers.NewAuthHandler(authService),
		Orders:        httpHandlers.NewOrderHandler(orderService),
		Applications:  httpHandlers.NewApplicationHandler(orderService),
		Wallet:        httpHandlers.NewWalletHandler(walletService),
		Payments:      httpHandlers.NewPaymentHandler(paymentService),
		Deliveries:    httpHandlers.NewDeliveryHandler(deliveryService),
		Notifications: httpHandlers.NewNotificationHandler(notificationService),
		Invoices:      httpHandlers.NewInvoiceHandler(invoiceService),
		YouTube:       httpHandlers.NewYouTubeHandler(youtubeService, cfg.FrontendURL),
		WS:            httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
		Health:        httpHandlers.NewHealthHandler(dbConn),
		Uploads:       uploads,
	}, tokenManager)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	goroutine.SafeGo("http_shutdown", func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Error("ошибка остановки http сервера")
		}
	})

	logger.Log.WithField("port", cfg.HTTPPort).Info("HTTP сервер запущен")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// orderReads объединяет чтение заказов и их журнала.
type orderReads struct {
	*repository.OrderRepository
	*repository.OrderHistoryRepository
}

// newVideoStorage выбирает хранилище. Раздача /uploads нужна только локальному.
func newVideoStorage(cfg *config.Config) (storage.VideoStorage, *httpHandlers.UploadsHandler, error) {
	if cfg.Storage.Driver == config.StorageDriverSupabase {
		s, err := storage.NewSupabaseStorage(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey, cfg.Storage.SupabaseBucket, cfg.Storage.MaxUploadSizeMB)
		return s, nil, err
	}
	s, err := storage.NewLocalStorage(cfg.Storage.LocalPath, httpRouter.UploadsPrefix, cfg.Storage.MaxUploadSizeMB, cfg.Storage.SigningKey)
	if err != nil {
		return nil, nil, err
	}
	return s, httpHandlers.NewUploadsHandler(s), nil
}

// safeClose закрывает соединение с базой.
func safeClose(conn *sqlx.DB) {
	if err := conn.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
