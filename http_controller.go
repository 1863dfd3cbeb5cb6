package onboard

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// HTTPController exposes the onboarding operations as a JSON API.
// Authorization is a collaborator concern: the routes assume an
// upstream gate already authenticated and authorized the caller for
// the privileged endpoints.
type HTTPController struct {
	Debug  bool
	Logger Logger

	repo   RepositoryManager
	guard  fiber.Handler
	auth   *Authenticator
	reg    *RegisterUserHandler
	submit *SubmitApplicationHandler
	review *ReviewApplicationHandler
	del    *DeleteApplicationHandler
	forgot *ForgotPasswordHandler
	change *ChangePasswordHandler
}

// HTTPControllerOption customizes controller construction.
type HTTPControllerOption func(*HTTPController)

// WithControllerMailer sets the notification sink on every flow that
// sends mail.
func WithControllerMailer(m Mailer) HTTPControllerOption {
	return func(c *HTTPController) {
		c.submit.WithMailer(m)
		c.review.WithMailer(m)
		c.forgot.WithMailer(m)
	}
}

// WithControllerGuard protects the application management routes,
// typically with RequireRole(tokens, RoleAdmin). Submission and the
// auth endpoints stay public.
func WithControllerGuard(guard fiber.Handler) HTTPControllerOption {
	return func(c *HTTPController) {
		c.guard = guard
	}
}

// WithControllerAdminEmail sets the recipient for submission
// notifications.
func WithControllerAdminEmail(email string) HTTPControllerOption {
	return func(c *HTTPController) {
		c.submit.WithAdminEmail(email)
	}
}

// WithControllerActivitySink sets the audit sink on every flow.
func WithControllerActivitySink(sink ActivitySink) HTTPControllerOption {
	return func(c *HTTPController) {
		c.auth.WithActivitySink(sink)
		c.reg.WithActivitySink(sink)
		c.submit.WithActivitySink(sink)
		c.review.WithActivitySink(sink)
		c.del.WithActivitySink(sink)
		c.forgot.WithActivitySink(sink)
		c.change.WithActivitySink(sink)
	}
}

// WithControllerLogger overrides the logger used by the controller and
// its handlers.
func WithControllerLogger(logger Logger) HTTPControllerOption {
	return func(c *HTTPController) {
		if logger == nil {
			return
		}
		c.Logger = logger
		c.reg.WithLogger(logger)
		c.submit.WithLogger(logger)
		c.review.WithLogger(logger)
		c.del.WithLogger(logger)
		c.forgot.WithLogger(logger)
		c.change.WithLogger(logger)
		c.auth.WithLogger(logger)
	}
}

// NewHTTPController wires the command handlers behind a fiber API.
func NewHTTPController(repo RepositoryManager, tokens TokenService, opts ...HTTPControllerOption) *HTTPController {
	c := &HTTPController{
		Logger: defLogger{},
		repo:   repo,
		auth:   NewAuthenticator(repo, tokens),
		reg:    NewRegisterUserHandler(repo, tokens),
		submit: NewSubmitApplicationHandler(repo),
		review: NewReviewApplicationHandler(repo),
		del:    NewDeleteApplicationHandler(repo),
		forgot: NewForgotPasswordHandler(repo, nil),
		change: NewChangePasswordHandler(repo, tokens),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// RegisterRoutes mounts the API on the given app.
func (c *HTTPController) RegisterRoutes(app *fiber.App) {
	auth := app.Group("/auth")
	auth.Post("/register", c.RegisterPost)
	auth.Post("/login", c.LoginPost)
	auth.Post("/password/forgot", c.ForgotPasswordPost)
	auth.Post("/password/change", c.ChangePasswordPost)

	apps := app.Group("/instructor-applications")
	apps.Post("/", c.SubmitPost)
	apps.Get("/", c.protected(c.ListGet)...)
	apps.Get("/:id", c.protected(c.ApplicationGet)...)
	apps.Post("/:id/approve", c.protected(c.ApprovePost)...)
	apps.Post("/:id/reject", c.protected(c.RejectPost)...)
	apps.Delete("/:id", c.protected(c.DeleteApplication)...)
}

func (c *HTTPController) protected(handler fiber.Handler) []fiber.Handler {
	if c.guard == nil {
		return []fiber.Handler{handler}
	}
	return []fiber.Handler{c.guard, handler}
}

// RegisterPost creates a user account.
func (c *HTTPController) RegisterPost(ctx *fiber.Ctx) error {
	payload := new(RegisterUserMessage)
	if err := ctx.BodyParser(payload); err != nil {
		return c.renderError(ctx, badPayloadError(err))
	}

	var resp *RegisterUserResponse
	payload.OnResponse = func(r *RegisterUserResponse) { resp = r }

	if err := c.reg.Execute(ctx.Context(), *payload); err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.Status(http.StatusCreated).JSON(fiber.Map{
		"identity": resp.Identity,
		"token":    resp.Token,
	})
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginPost authenticates and mints a session token.
func (c *HTTPController) LoginPost(ctx *fiber.Ctx) error {
	payload := new(LoginRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return c.renderError(ctx, badPayloadError(err))
	}

	result, err := c.auth.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(result)
}

// ForgotPasswordPost rotates to a temporary password and emails it.
func (c *HTTPController) ForgotPasswordPost(ctx *fiber.Ctx) error {
	payload := new(ForgotPasswordMessage)
	if err := ctx.BodyParser(payload); err != nil {
		return c.renderError(ctx, badPayloadError(err))
	}

	if err := c.forgot.Execute(ctx.Context(), *payload); err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"delivered": true})
}

// ChangePasswordPost rotates the caller's password.
func (c *HTTPController) ChangePasswordPost(ctx *fiber.Ctx) error {
	payload := new(ChangePasswordMessage)
	if err := ctx.BodyParser(payload); err != nil {
		return c.renderError(ctx, badPayloadError(err))
	}

	var resp *ChangePasswordResponse
	payload.OnResponse = func(r *ChangePasswordResponse) { resp = r }

	if err := c.change.Execute(ctx.Context(), *payload); err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{
		"identity": resp.Identity,
		"token":    resp.Token,
	})
}

// SubmitPost accepts a new instructor application.
func (c *HTTPController) SubmitPost(ctx *fiber.Ctx) error {
	payload := new(SubmitApplicationMessage)
	if err := ctx.BodyParser(payload); err != nil {
		return c.renderError(ctx, badPayloadError(err))
	}

	var resp *SubmitApplicationResponse
	payload.OnResponse = func(r *SubmitApplicationResponse) { resp = r }

	if err := c.submit.Execute(ctx.Context(), *payload); err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.Status(http.StatusCreated).JSON(fiber.Map{
		"application_id": resp.ApplicationID,
		"status":         StatusPending,
	})
}

// ListGet returns a page of applications.
func (c *HTTPController) ListGet(ctx *fiber.Ctx) error {
	criteria := ApplicationListCriteria{
		Status:  ApplicationStatus(ctx.Query("status")),
		Page:    ctx.QueryInt("page", 1),
		PerPage: ctx.QueryInt("per_page", defaultPerPage),
	}

	items, total, err := c.repo.Applications().ListApplications(ctx.Context(), criteria)
	if err != nil {
		return c.renderError(ctx, err)
	}

	page, perPage := normalizePagination(criteria.Page, criteria.PerPage)

	return ctx.JSON(fiber.Map{
		"items":    items,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// ApplicationGet returns one application by id.
func (c *HTTPController) ApplicationGet(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return c.renderError(ctx, badPayloadError(err))
	}

	app, err := c.repo.Applications().GetByID(ctx.Context(), id.String())
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			return c.renderError(ctx, ErrApplicationNotFound)
		}
		return c.renderError(ctx, err)
	}

	return ctx.JSON(app)
}

type reviewRequest struct {
	ReviewerID uuid.UUID `json:"reviewer_id"`
	Reason     string    `json:"reason,omitempty"`
}

// ApprovePost resolves an application by promoting the applicant.
func (c *HTTPController) ApprovePost(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return c.renderError(ctx, badPayloadError(err))
	}

	payload := new(reviewRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return c.renderError(ctx, badPayloadError(err))
	}

	var resp *ApproveApplicationResponse
	msg := ApproveApplicationMessage{
		ApplicationID: id,
		ApproverID:    payload.ReviewerID,
		OnResponse:    func(r *ApproveApplicationResponse) { resp = r },
	}

	if err := c.review.Approve(ctx.Context(), msg); err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{
		"identity":    resp.Identity,
		"application": resp.Application,
	})
}

// RejectPost resolves an application without creating a user.
func (c *HTTPController) RejectPost(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return c.renderError(ctx, badPayloadError(err))
	}

	payload := new(reviewRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return c.renderError(ctx, badPayloadError(err))
	}

	var resp *RejectApplicationResponse
	msg := RejectApplicationMessage{
		ApplicationID: id,
		RejecterID:    payload.ReviewerID,
		Reason:        payload.Reason,
		OnResponse:    func(r *RejectApplicationResponse) { resp = r },
	}

	if err := c.review.Reject(ctx.Context(), msg); err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"application": resp.Application})
}

// DeleteApplication hard-deletes an application.
func (c *HTTPController) DeleteApplication(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return c.renderError(ctx, badPayloadError(err))
	}

	msg := DeleteApplicationMessage{ApplicationID: id}

	// The audit event names the caller when a guard authenticated one.
	if claims, ok := ClaimsFromCtx(ctx); ok {
		if actor, err := uuid.Parse(claims.UserID()); err == nil {
			msg.ActorID = actor
		}
	}

	if err := c.del.Execute(ctx.Context(), msg); err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.SendStatus(http.StatusNoContent)
}

func (c *HTTPController) renderError(ctx *fiber.Ctx, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	status := richErr.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}

	if c.Debug {
		c.Logger.Debug(
			"request error",
			"message", richErr.Message,
			"category", richErr.Category,
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)
	}

	return ctx.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"message":   richErr.Message,
			"category":  richErr.Category,
			"text_code": richErr.TextCode,
		},
	})
}

func badPayloadError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to parse request payload").
		WithCode(goerrors.CodeBadRequest)
}
