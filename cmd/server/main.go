package main // Entry point package

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-booking/internal/booking"
	"github.com/iliyamo/cinema-ticket-booking/internal/config"
	"github.com/iliyamo/cinema-ticket-booking/internal/database"
	"github.com/iliyamo/cinema-ticket-booking/internal/handler"
	"github.com/iliyamo/cinema-ticket-booking/internal/hold"
	"github.com/iliyamo/cinema-ticket-booking/internal/middleware"
	"github.com/iliyamo/cinema-ticket-booking/internal/queue"
	"github.com/iliyamo/cinema-ticket-booking/internal/realtime"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
	"github.com/iliyamo/cinema-ticket-booking/internal/router"
	queue_publisher "github.com/iliyamo/cinema-ticket-booking/internal/service"
)

func main() {
	// .env is a developer convenience; in deployment the environment is
	// injected directly and the file is absent.
	_ = godotenv.Load()

	cfg := config.Load()
	holdCfg := config.LoadHoldConfig()
	rateCfg := config.LoadRateLimitConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("main: mysql: %v", err)
	}
	defer db.Close()

	// Redis is load-bearing here: holds live in it, and without it every
	// acquire would have to fail closed anyway.  Refuse to start instead.
	rdb, err := config.NewRedisClient()
	if err != nil {
		log.Fatalf("main: redis: %v", err)
	}
	defer rdb.Close()

	showtimes := repository.NewShowtimeRepo(db)
	seats := repository.NewSeatRepo(db)
	bookings := repository.NewBookingRepo(db)
	vouchers := repository.NewVoucherRepo(db)

	// Seat events fan out through Redis pub/sub so that clients connected
	// to other replicas observe holds taken on this one.
	hub := realtime.NewHub()
	bridge := realtime.NewBridge(rdb, hub)
	go realtime.StartBridge(ctx, bridge)

	store := hold.NewStore(rdb, holdCfg)
	manager := hold.NewManager(store, showtimes, seats, bookings, bridge)

	publisher := queue_publisher.NewPublisher()
	// Concession pricing and promotion evaluation belong to their own
	// services; until those are wired in, concession orders are rejected
	// and promotion codes pass through undiscounted.
	committer := booking.NewCommitter(db, manager, showtimes, seats, bookings, nil, nil)
	lifecycle := booking.NewLifecycle(db, bookings, showtimes, vouchers, publisher, cfg.RefundCutoff)

	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			log.Printf("main: booking consumer: %v", err)
		}
	}()

	seatMapHandler := handler.NewSeatMapHandler(manager, hub, showtimes, seats, bookings)
	holdHandler := handler.NewHoldHandler(manager)
	bookingHandler := handler.NewBookingHandler(committer, lifecycle, bookings)
	paymentHandler := handler.NewPaymentHandler(lifecycle, cfg.PaymentSecret)

	e := echo.New()
	e.HideBanner = true
	limiter := middleware.NewTokenBucket(rateCfg, rdb)

	router.RegisterRoutes(e)
	router.RegisterPublic(e, seatMapHandler)
	router.RegisterCustomer(e, seatMapHandler, holdHandler, bookingHandler, cfg.JWTSecret, limiter)
	router.RegisterPayment(e, paymentHandler)
	router.RegisterAdmin(e, bookingHandler, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	go func() {
		<-ctx.Done()
		log.Printf("shutting down")
		if err := e.Shutdown(context.Background()); err != nil {
			log.Printf("main: shutdown: %v", err)
		}
	}()

	if err := e.Start(addr); err != nil {
		log.Printf("server stopped: %v", err)
	}
}
