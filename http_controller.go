package portal

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// RegisterPortalRoutes mounts the sign in and sign out routes on the
// given router.
func RegisterPortalRoutes[T any](app router.Router[T], opts ...PortalControllerOption) {

	controller := NewPortalController(opts...)

	app.
		Get(controller.Routes.Login,
			controller.LoginShow,
		).
		SetName("sign-in.get")

	app.
		Post(
			controller.Routes.Login,
			controller.LoginPost,
		).
		SetName("sign-in.post")

	app.Get(controller.Routes.Logout, controller.LogOut).SetName("sign-out.get")
}

type PortalControllerRoutes struct {
	Login  string
	Logout string
}

type PortalControllerViews struct {
	Login string
}

type PortalController struct {
	Debug        bool
	Logger       Logger
	Session      *SessionStore
	Routes       *PortalControllerRoutes
	Views        *PortalControllerViews
	RedirectKey  string
	ErrorHandler router.ErrorHandler
}

type PortalControllerOption func(*PortalController) *PortalController

func WithControllerSession(session *SessionStore) PortalControllerOption {
	return func(c *PortalController) *PortalController {
		c.Session = session
		return c
	}
}

func WithControllerLogger(logger Logger) PortalControllerOption {
	return func(c *PortalController) *PortalController {
		c.Logger = logger
		return c
	}
}

func WithControllerDebug(debug bool) PortalControllerOption {
	return func(c *PortalController) *PortalController {
		c.Debug = debug
		return c
	}
}

func NewPortalController(opts ...PortalControllerOption) *PortalController {
	c := &PortalController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		RedirectKey:  DefaultRedirectCookie,
		Routes: &PortalControllerRoutes{
			Login:  "/login",
			Logout: "/logout",
		},
		Views: &PortalControllerViews{
			Login: "login",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Session == nil {
		panic("Missing SessionStore in portal controller...")
	}

	return c
}

func (a *PortalController) LoginShow(ctx router.Context) error {
	return ctx.Render(a.Views.Login, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

func (a *PortalController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)
	errors := map[string]string{}

	if err := ctx.Bind(payload); err != nil {
		errors["form"] = "Failed to parse form"
		a.Logger.Error("login parse payload: %v", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.Login, router.ViewContext{
			"errors": errors,
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.Login, router.ViewContext{
			"record":     payload,
			"validation": err.Error(),
		})
	}

	if a.Debug {
		fmt.Println("======= PORTAL LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(map[string]string{"email": payload.Email}))
		fmt.Println("===========================")
	}

	if err := a.Session.Login(ctx.Context(), *payload); err != nil {
		errors["authentication"] = ToUserMessage(err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  ToUserMessage(err),
			"system_message": "Authentication failed",
		}).Render(a.Views.Login, router.ViewContext{
			"errors": errors,
			"record": payload,
		})
	}

	redirect := GetRedirect(ctx, a.RedirectKey, "/")

	return ctx.Redirect(redirect, router.StatusSeeOther)
}

func (a *PortalController) LogOut(ctx router.Context) error {
	a.Session.Logout(ctx.Context())
	return ctx.Redirect("/", router.StatusTemporaryRedirect)
}

func defaultErrHandler(c router.Context, err error) error {
	return c.Render("errors/500", router.ViewContext{
		"message": err.Error(),
	})
}
