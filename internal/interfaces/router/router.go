package router

import (
	"context"
	"net/http"

	appsvc "bprd-credits/internal/app"
	"bprd-credits/internal/config"
	"bprd-credits/internal/constants"
	"bprd-credits/internal/infrastructure/database"
	certhandler "bprd-credits/internal/interfaces/handlers/certificates"
	claimhandler "bprd-credits/internal/interfaces/handlers/claims"
	elighandler "bprd-credits/internal/interfaces/handlers/eligibility"
	healthhandler "bprd-credits/internal/interfaces/handlers/health"
	pchandler "bprd-credits/internal/interfaces/handlers/pendingcredits"
	studenthandler "bprd-credits/internal/interfaces/handlers/students"
	uploadhandler "bprd-credits/internal/interfaces/handlers/uploads"
	"bprd-credits/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) PingContext(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CreateApp builds the Fiber app. Without DATABASE_URL only the health routes
// are mounted; without REDIS_URL sessions, counters and idempotency are off.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		rdb = redis.NewClient(opt)
	}

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		if db, err = database.Open(cfg.DatabaseURL); err != nil {
			return nil, nil, nil, err
		}
	}

	return New(cfg, db, rdb), db, rdb, nil
}

// New mounts middleware and routes over already opened connections.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
		AllowLocal:    cfg.AllowCrossSiteDev,
	}))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.Session(rdb, cfg.SessionSecret))

	hh := &healthhandler.Handlers{Rdb: rdb, HealthAdminKey: cfg.HealthAdminKey}
	if db != nil {
		hh.DB = &gormDBPinger{db: db}
	}
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)

	if db == nil {
		return app
	}
	svc := appsvc.NewServices(cfg, db)

	api := app.Group("/api/v1", middleware.RequireAuth(), middleware.Idempotency(rdb, cfg.IdempotencyTTL))
	perm := middleware.AuthorizePermission

	sh := &studenthandler.Handlers{Service: svc.Ledger, Umbrellas: svc.Umbrellas}
	sg := api.Group("/students")
	sg.Post("/", perm(constants.ProvisionStudent), sh.Provision)
	sg.Get("/:id/ledger", perm(constants.ViewData), sh.Ledger)
	sg.Get("/:id/history", perm(constants.ViewData), sh.History)

	eh := &elighandler.Handlers{Service: svc.Eligibility}
	api.Get("/eligibility", perm(constants.ViewData), eh.Check)
	api.Get("/eligibility/catalog", perm(constants.ViewData), eh.Catalog)

	ch := &claimhandler.Handlers{Service: svc.Claims}
	cg := api.Group("/claims")
	cg.Post("/", perm(constants.RequestClaim), ch.Create)
	cg.Get("/poc-queue", perm(constants.ViewQueuePOC), ch.PocQueue)
	cg.Get("/admin-queue", perm(constants.ViewQueueAdmin), ch.AdminQueue)
	cg.Get("/student/:id", perm(constants.ViewData), ch.ListByStudent)
	cg.Get("/:id", perm(constants.ViewData), ch.Get)
	cg.Post("/:id/approve/poc", perm(constants.ApproveAsPOC), ch.ApprovePOC)
	cg.Post("/:id/approve/admin", perm(constants.ApproveAsAdmin), ch.ApproveAdmin)
	cg.Post("/:id/decline/poc", perm(constants.ApproveAsPOC), ch.DeclinePOC)
	cg.Post("/:id/decline/admin", perm(constants.ApproveAsAdmin), ch.DeclineAdmin)
	cg.Post("/:id/finalize", perm(constants.FinalizeClaim), ch.Finalize)

	ph := &pchandler.Handlers{Service: svc.Intake}
	pg := api.Group("/pending-credits")
	pg.Post("/", perm(constants.SubmitCredit), ph.Submit)
	pg.Get("/poc-queue", perm(constants.ViewQueuePOC), ph.PocQueue)
	pg.Get("/admin-queue", perm(constants.ViewQueueAdmin), ph.AdminQueue)
	pg.Get("/student/:id", perm(constants.ViewData), ph.ListByStudent)
	pg.Get("/:id", perm(constants.ViewData), ph.Get)
	pg.Post("/:id/approve/poc", perm(constants.ApproveAsPOC), ph.ApprovePOC)
	pg.Post("/:id/approve/admin", perm(constants.ApproveAsAdmin), ph.ApproveAdmin)
	pg.Post("/:id/decline/poc", perm(constants.ApproveAsPOC), ph.DeclinePOC)
	pg.Post("/:id/decline/admin", perm(constants.ApproveAsAdmin), ph.DeclineAdmin)
	pg.Post("/:id/apply", perm(constants.FinalizeClaim), ph.Apply)

	cth := &certhandler.Handlers{Service: svc.Certificates}
	ctg := api.Group("/certificates")
	ctg.Get("/student/:id", perm(constants.ViewData), cth.ListByStudent)
	ctg.Get("/:id", perm(constants.ViewData), cth.Get)

	uph := &uploadhandler.Handlers{Service: svc.Uploads}
	api.Post("/uploads/credit-document", perm(constants.SubmitCredit), uph.CreditDocument)

	return app
}

func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
