package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"iuran/docs"
	"iuran/internal/auth"
	"iuran/internal/config"
	"iuran/internal/handler"
	"iuran/internal/model"
)

// Handlers groups the HTTP handlers mounted by Register.
type Handlers struct {
	Auth        *handler.AuthHandler
	User        *handler.UserHandler
	Submission  *handler.SubmissionHandler
	Maintenance *handler.MaintenanceHandler
}

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	jwtService *auth.JWTService,
	tokenStore auth.TokenStoreInterface,
	users auth.UserLoader,
	h Handlers,
) {
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Validator = &CustomValidator{validator: validator.New()}

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = cfg.SwaggerHost
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)

	// Secured routes (require JWT authentication)
	secured := api.Group("", auth.JWTMiddleware(jwtService), auth.SessionMiddleware(tokenStore, users))
	secured.POST("/auth/logout", h.Auth.Logout)
	secured.GET("/me", h.Auth.Me)

	// Member routes
	secured.GET("/submissions/mine", h.Submission.MySubmission)
	secured.PUT("/submissions", h.Submission.SubmitSubmission)
	secured.POST("/submissions", h.Submission.CreateSubmission)
	secured.PATCH("/submissions/:id", h.Submission.UpdateSubmission)
	secured.PATCH("/users/:id", h.User.UpdateUser)

	// Staff routes
	staff := secured.Group("", auth.RequireRoles(model.RoleAdmin, model.RoleSuperadmin))
	staff.GET("/dashboard/stats", h.Submission.DashboardStats)
	staff.GET("/submissions", h.Submission.ListSubmissions)
	staff.GET("/submissions/export", h.Submission.ExportSubmissions)
	staff.DELETE("/submissions/:id", h.Submission.DeleteSubmission)
	staff.GET("/users", h.User.ListUsers)
	staff.POST("/users", h.User.CreateUser)
	staff.DELETE("/users/:id", h.User.DeleteUser)

	// Superadmin routes
	admin := secured.Group("/admin", auth.RequireRoles(model.RoleSuperadmin))
	admin.GET("/backup", h.Maintenance.Backup)
	admin.POST("/restore", h.Maintenance.Restore)
	admin.POST("/reset", h.Maintenance.Reset)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
