package accounts

import (
	"net/http"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// HeaderRefreshToken carries the refresh token on bearer authenticated routes.
const HeaderRefreshToken = "x-refresh-token"

var (
	lowerRx = regexp.MustCompile(`[a-z]`)
	upperRx = regexp.MustCompile(`[A-Z]`)
	digitRx = regexp.MustCompile(`[0-9]`)
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Patch(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// Envelope is the JSON body of every response.
type Envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

// AccountsController exposes the account flows over HTTP.
type AccountsController struct {
	Service      *AccountService
	Guard        *AccessGuard
	Logger       Logger
	ErrorHandler func(ctx router.Context, err error) error
	Debug        bool
}

// NewAccountsController wires service and guard into a controller.
func NewAccountsController(service *AccountService, guard *AccessGuard, logger Logger) *AccountsController {
	c := &AccountsController{
		Service: service,
		Guard:   guard,
		Logger:  normalizeLogger(logger),
	}
	c.ErrorHandler = c.defaultErrHandler
	return c
}

// RegisterRoutes mounts the routes on a group, typically "/auth".
func (c *AccountsController) RegisterRoutes(group RouteRegistrar) {
	protected := c.Guard.Middleware(c.ErrorHandler)

	group.Post("/register", c.Register)
	group.Post("/login", c.Login)
	group.Patch("/update-auth/:id", c.UpdateAuth, protected)
	group.Patch("/update-user/:id", c.UpdateUser, protected)
	group.Delete("/:id", c.DeleteUser, protected)
}

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Username string `json:"username" form:"username"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Email, validation.Required, is.Email),
			validation.Field(&r.Password, passwordRules(true)...),
			validation.Field(&r.Username, validation.Required, validation.Length(2, 50)),
		)
	}, "Invalid registration payload")
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Email, validation.Required, is.Email),
			validation.Field(&r.Password, validation.Required),
		)
	}, "Invalid login payload")
}

// UpdateAuthRequest changes email and/or password.
type UpdateAuthRequest struct {
	Email    *string `json:"email,omitempty" form:"email"`
	Password *string `json:"password,omitempty" form:"password"`
}

// Validate will run validation rules
func (r UpdateAuthRequest) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Email, validation.NilOrNotEmpty, is.Email),
			validation.Field(&r.Password, passwordRules(false)...),
		)
	}, "Invalid credentials update payload")
}

// Patch converts the request into a CredentialsPatch.
func (r UpdateAuthRequest) Patch() CredentialsPatch {
	return CredentialsPatch{Email: r.Email, Password: r.Password}
}

// UpdateUserRequest changes the username.
type UpdateUserRequest struct {
	Username string `json:"username" form:"username"`
}

// Validate will run validation rules
func (r UpdateUserRequest) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Username, validation.Required, validation.Length(2, 50)),
		)
	}, "Invalid profile update payload")
}

func passwordRules(required bool) []validation.Rule {
	rules := []validation.Rule{}
	if required {
		rules = append(rules, validation.Required)
	} else {
		rules = append(rules, validation.NilOrNotEmpty)
	}
	return append(rules,
		validation.Length(8, 0),
		validation.Match(lowerRx).Error("must contain a lowercase letter"),
		validation.Match(upperRx).Error("must contain an uppercase letter"),
		validation.Match(digitRx).Error("must contain a number"),
	)
}

// Register handles POST /register.
func (c *AccountsController) Register(ctx router.Context) error {
	payload := new(RegisterRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, NewError(ErrValidation, err, nil))
	}

	if verr := payload.Validate(); verr != nil {
		return c.ErrorHandler(ctx, verr)
	}

	if c.Debug {
		c.Logger.Debug("register payload", "email", payload.Email, "username", payload.Username)
	}

	res, err := c.Service.Register(ctx.Context(), payload.Email, payload.Password, strings.TrimSpace(payload.Username))
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, Envelope{
		Status:  "success",
		Data:    res,
		Message: "User registered successfully",
	})
}

// Login handles POST /login.
func (c *AccountsController) Login(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, NewError(ErrValidation, err, nil))
	}

	if verr := payload.Validate(); verr != nil {
		return c.ErrorHandler(ctx, verr)
	}

	res, err := c.Service.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, Envelope{
		Status:  "success",
		Data:    res,
		Message: "User logged in successfully",
	})
}

// UpdateAuth handles PATCH /update-auth/:id.
func (c *AccountsController) UpdateAuth(ctx router.Context) error {
	session, ok := SessionFromContext(ctx.Context())
	if !ok {
		return c.ErrorHandler(ctx, ErrUnauthorized.Clone())
	}

	id := ctx.Param("id")
	if err := ensureSameUser(session.Principal, id); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	payload := new(UpdateAuthRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, NewError(ErrValidation, err, nil))
	}

	if verr := payload.Validate(); verr != nil {
		return c.ErrorHandler(ctx, verr)
	}

	res, err := c.Service.UpdateCredentials(ctx.Context(), session, id, payload.Patch())
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, Envelope{
		Status:  "success",
		Data:    res,
		Message: "User updated successfully",
	})
}

// UpdateUser handles PATCH /update-user/:id.
func (c *AccountsController) UpdateUser(ctx router.Context) error {
	principal, ok := PrincipalFromContext(ctx.Context())
	if !ok {
		return c.ErrorHandler(ctx, ErrUnauthorized.Clone())
	}

	id := ctx.Param("id")
	if err := ensureSameUser(principal, id); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	payload := new(UpdateUserRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, NewError(ErrValidation, err, nil))
	}

	if verr := payload.Validate(); verr != nil {
		return c.ErrorHandler(ctx, verr)
	}

	username := payload.Username
	res, err := c.Service.UpdateProfile(ctx.Context(), principal, id, ProfilePatch{Username: &username})
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, Envelope{
		Status:  "success",
		Data:    res,
		Message: "User updated successfully",
	})
}

// DeleteUser handles DELETE /:id.
func (c *AccountsController) DeleteUser(ctx router.Context) error {
	principal, ok := PrincipalFromContext(ctx.Context())
	if !ok {
		return c.ErrorHandler(ctx, ErrUnauthorized.Clone())
	}

	res, err := c.Service.DeleteAccount(ctx.Context(), principal, ctx.Param("id"))
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, Envelope{
		Status:  "success",
		Data:    res,
		Message: "User removed successfully",
	})
}

func (c *AccountsController) defaultErrHandler(ctx router.Context, err error) error {
	return WriteError(ctx, c.Logger, err)
}

// WriteError renders err as an error envelope. Only the taxonomy message and
// text code reach the client, causes and metadata are logged.
func WriteError(ctx router.Context, logger Logger, err error) error {
	logger = normalizeLogger(logger)

	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = internalError(err, "http")
	}

	kind := KindOf(richErr)
	status := HTTPStatus(richErr)

	logger.Error(
		"Request error handler",
		"error", richErr.Error(),
		"kind", kind,
		"category", richErr.Category,
		"text_code", richErr.TextCode,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	body := Envelope{
		Status:  "error",
		Message: richErr.Message,
		Code:    richErr.TextCode,
	}

	switch kind {
	case KindInternal, KindInconsistentState:
		body.Message = ErrInternal.Message
		body.Code = TextCodeInternal
	case KindValidation:
		body.Errors = richErr.ValidationMap()
		if body.Code == "" {
			body.Code = TextCodeValidationFailed
		}
	}

	return ctx.JSON(status, body)
}
