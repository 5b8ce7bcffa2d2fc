package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/cartline/api/controllers"
	"github.com/example/cartline/api/middleware"
	checkoutsvc "github.com/example/cartline/internal/checkout"
	"github.com/example/cartline/internal/identity"
	orderssvc "github.com/example/cartline/internal/orders"
	"github.com/example/cartline/internal/payments"
	settlementsvc "github.com/example/cartline/internal/settlement"
	"github.com/example/cartline/pkg/config"
	"github.com/example/cartline/pkg/logger"
)

// Deps carries everything the router hands to its controllers.
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         controllers.Pinger
	Redis      controllers.Pinger
	Identity   identity.Service
	Checkout   checkoutsvc.Service
	Orders     orderssvc.Service
	Settlement settlementsvc.Service
	Settings   payments.SettingsService
	Registry   *prometheus.Registry
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/checkout", func(r chi.Router) {
		r.Post("/initiate", controllers.CheckoutInitiate(deps.Checkout, logg))
		r.Post("/verify", controllers.CheckoutVerify(deps.Checkout, logg))
		r.Post("/otp/resend", controllers.OTPResend(deps.Identity, logg))
	})

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Post("/ssl/success/{orderCode}", controllers.PaymentSuccess(deps.Settlement, cfg.App.StoreFront, logg))
		r.Post("/ssl/ipn", controllers.PaymentIPN(deps.Settlement, logg))
		r.Post("/fail/{orderCode}", controllers.PaymentFail(deps.Settlement, cfg.App.StoreFront, logg))
		r.Get("/fail/{orderCode}", controllers.PaymentFail(deps.Settlement, cfg.App.StoreFront, logg))
		r.Get("/bkash/callback", controllers.BkashCallback(deps.Settlement, cfg.App.StoreFront, logg))
		r.Get("/nagad/callback/{orderCode}", controllers.NagadCallback(deps.Settlement, cfg.App.StoreFront, logg))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/", controllers.MyOrders(deps.Orders, logg))
		r.Get("/{orderCode}", controllers.MyOrder(deps.Orders, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, logg),
			middleware.RequireAdmin(logg),
		)

		r.Route("/orders/{orderCode}", func(r chi.Router) {
			r.Get("/", controllers.AdminGetOrder(deps.Orders, logg))
			r.Get("/timeline", controllers.AdminOrderTimeline(deps.Orders, logg))
			r.Patch("/status", controllers.AdminChangeOrderStatus(deps.Orders, logg))
			r.Delete("/", controllers.AdminDeleteOrder(deps.Orders, logg))
			r.Post("/convert-cod", controllers.AdminConvertOrderToCOD(deps.Orders, logg))
			r.Get("/crm-logs", controllers.AdminListCRMLogs(deps.Orders, logg))
			r.Post("/crm-logs", controllers.AdminAddCRMLog(deps.Orders, logg))
		})

		r.Route("/payment-settings", func(r chi.Router) {
			r.Get("/", controllers.AdminListPaymentSettings(deps.Settings, logg))
			r.Put("/", controllers.AdminUpdatePaymentSetting(deps.Settings, logg))
		})
	})

	return r
}
