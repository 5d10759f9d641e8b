package router

import (
	"log"
	"net/http"

	"github.com/dentlab/api/internal/config"
	"github.com/dentlab/api/internal/database"
	"github.com/dentlab/api/internal/events"
	"github.com/dentlab/api/internal/handler"
	mw "github.com/dentlab/api/internal/middleware"
	"github.com/dentlab/api/internal/ordernumber"
	"github.com/dentlab/api/internal/service"
	"github.com/dentlab/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// New creates a Chi router with all application routes wired up.
// Lifecycle events go to publisher; pass the hub itself when nothing else listens.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, publisher events.Publisher) chi.Router {
	if publisher == nil {
		publisher = hub
	}

	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// WebSocket route (handles auth internally via query param). Not under the request timeout.
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Services
	orderService := service.NewOrderService(
		pool,
		func(db database.DBTX) service.OrderStore { return database.New(db) },
		queries,
		service.WithNumberGenerator(ordernumber.NewGenerator(cfg.OrderLocation)),
		service.WithMaxRetries(cfg.OrderNumberMaxRetries),
		service.WithPublisher(publisher),
	)
	orderQueries := service.NewOrderQueries(queries)
	catalog := service.NewPriceCatalog(queries)
	reports := service.NewReports(queries)
	clinicService := service.NewClinicService(
		pool,
		func(db database.DBTX) service.ClinicStore { return database.New(db) },
	)

	r.Group(func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
		}

		authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
		authHandler.RegisterRoutes(r)

		// Protected routes (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))

			r.Get("/auth/me", authHandler.Me)

			clinicHandler := handler.NewClinicHandler(clinicService, queries)
			r.Route("/clinics", clinicHandler.RegisterRoutes)

			productHandler := handler.NewProductHandler(queries, catalog)
			r.Route("/products", productHandler.RegisterRoutes)

			priceHandler := handler.NewPriceHandler(catalog)
			r.Route("/prices", priceHandler.RegisterRoutes)

			orderHandler := handler.NewOrderHandler(orderService, orderQueries)
			r.Route("/orders", orderHandler.RegisterRoutes)

			reportsHandler := handler.NewReportsHandler(reports, cfg.OrderLocation)
			r.Route("/reports", reportsHandler.RegisterRoutes)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
