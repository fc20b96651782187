package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/didi-project08/ecommerce-fullstack-tes/internal/config"
	"github.com/didi-project08/ecommerce-fullstack-tes/internal/database"
	"github.com/didi-project08/ecommerce-fullstack-tes/internal/handler"
	"github.com/didi-project08/ecommerce-fullstack-tes/internal/queue"
	"github.com/didi-project08/ecommerce-fullstack-tes/internal/repository"
	"github.com/didi-project08/ecommerce-fullstack-tes/internal/router"
	"github.com/didi-project08/ecommerce-fullstack-tes/internal/service"
)

func main() {
	// .env is a development convenience; in deployed environments the
	// variables are already present and the file is absent.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config.Load()
	rate := config.LoadRateLimitConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis backs the per-user session locks. A nil client degrades to
	// in-process locking, which is correct for a single instance.
	rdb := config.NewRedisClient()

	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	logs := repository.NewUserLogRepo(db)
	locks := service.NewSessionLocks(rdb)

	svc := service.NewAuthService(cfg, rate, users, roles, logs, locks, queue.PublishAuthEvent)

	auth := handler.NewAuthHandler(cfg, rate, svc)
	admin := handler.NewAdminHandler(roles)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, cfg, rate, auth, admin, users, roles)

	// The consumer drains auth.events into the access log file and
	// reconnects on broker failure; it never takes the server down.
	go func() {
		if err := queue.StartAuthEventConsumer(); err != nil {
			log.Printf("auth-consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
