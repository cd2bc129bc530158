package authsync

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// AuthController exposes the dashboard's JSON surface over the
// orchestrator: credential endpoints plus guarded profile endpoints.
type AuthController struct {
	Orchestrator *Orchestrator
	Logger       Logger
	Config       GuardConfig
}

// NewAuthController wires a controller with the default logger.
func NewAuthController(orchestrator *Orchestrator, cfg GuardConfig) *AuthController {
	return &AuthController{
		Orchestrator: orchestrator,
		Logger:       defLogger{},
		Config:       cfg,
	}
}

// RegisterRoutes mounts the controller. Profile routes sit behind the
// route guard.
func (a *AuthController) RegisterRoutes(app *fiber.App) {
	app.Post("/auth/login", a.LoginPost)
	app.Post("/auth/register", a.RegisterPost)
	app.Post("/auth/logout", a.LogoutPost)

	guarded := app.Group("/me", RouteGuard(a.Orchestrator, a.Config))
	guarded.Get("/", a.MeGet)
	guarded.Put("/profile", a.ProfilePut)
}

// LoginRequest is the sign-in payload.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// RegisterRequest is the sign-up payload. The optional profile fields seed
// the identity's profile row.
type RegisterRequest struct {
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
	FullName        string `json:"full_name" form:"full_name"`
	Phone           string `json:"phone" form:"phone"`
	Department      string `json:"department" form:"department"`
	StudentID       string `json:"student_id" form:"student_id"`
}

// Validate will validate the payload
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
		validation.Field(&r.FullName, validation.Length(0, 200)),
	)
}

// Seed returns the profile fields of the payload.
func (r RegisterRequest) Seed() ProfilePatch {
	return ProfilePatch{
		FullName:   r.FullName,
		Phone:      r.Phone,
		Department: r.Department,
		StudentID:  r.StudentID,
	}
}

// ProfileRequest is the profile save payload.
type ProfileRequest struct {
	FullName   string `json:"full_name" form:"full_name"`
	AvatarURL  string `json:"avatar_url" form:"avatar_url"`
	Phone      string `json:"phone" form:"phone"`
	Department string `json:"department" form:"department"`
	StudentID  string `json:"student_id" form:"student_id"`
}

// Validate will validate the payload
func (r ProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Length(0, 200)),
		validation.Field(&r.AvatarURL, is.URL),
		validation.Field(&r.Department, validation.Length(0, 120)),
		validation.Field(&r.StudentID, validation.Length(0, 40)),
	)
}

// ValidateStringEquals checks that the validated string matches expected.
func ValidateStringEquals(expected string) validation.RuleFunc {
	return func(value any) error {
		s, ok := value.(string)
		if !ok {
			return errors.New("must be a string")
		}
		if s != expected {
			return errors.New("passwords do not match")
		}
		return nil
	}
}

func (a *AuthController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginRequest)
	if err := c.BodyParser(payload); err != nil {
		return a.renderError(c, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse login payload"))
	}

	if err := payload.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"validation": err.Error(),
		})
	}

	if err := a.Orchestrator.SignIn(c.UserContext(), payload.Email, payload.Password); err != nil {
		a.Logger.Info("login failed for %s: %v", payload.Email, err)
		return a.renderError(c, err)
	}

	state := a.Orchestrator.Snapshot()
	return c.JSON(fiber.Map{
		"identity": state.Identity,
		"profile":  state.Profile,
		"redirect": GetRedirect(c, a.Config),
	})
}

func (a *AuthController) RegisterPost(c *fiber.Ctx) error {
	payload := new(RegisterRequest)
	if err := c.BodyParser(payload); err != nil {
		return a.renderError(c, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse registration payload"))
	}

	if err := payload.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"validation": err.Error(),
		})
	}

	if err := a.Orchestrator.SignUp(c.UserContext(), payload.Email, payload.Password, payload.Seed()); err != nil {
		a.Logger.Info("registration failed for %s: %v", payload.Email, err)
		return a.renderError(c, err)
	}

	// registration never authenticates; the caller switches to the login
	// flow once the email is verified
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "check your email for the confirmation link",
	})
}

func (a *AuthController) LogoutPost(c *fiber.Ctx) error {
	if err := a.Orchestrator.SignOut(c.UserContext()); err != nil {
		// local state is already cleared, report and still succeed
		a.Logger.Warn("logout: %v", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (a *AuthController) MeGet(c *fiber.Ctx) error {
	state := a.Orchestrator.Snapshot()
	return c.JSON(fiber.Map{
		"identity": state.Identity,
		"profile":  state.Profile,
	})
}

func (a *AuthController) ProfilePut(c *fiber.Ctx) error {
	payload := new(ProfileRequest)
	if err := c.BodyParser(payload); err != nil {
		return a.renderError(c, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse profile payload"))
	}

	if err := payload.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"validation": err.Error(),
		})
	}

	patch := ProfilePatch{
		FullName:   payload.FullName,
		AvatarURL:  payload.AvatarURL,
		Phone:      payload.Phone,
		Department: payload.Department,
		StudentID:  payload.StudentID,
	}

	if err := a.Orchestrator.UpdateProfile(c.UserContext(), patch); err != nil {
		return a.renderError(c, err)
	}

	return c.JSON(a.Orchestrator.Snapshot().Profile)
}

func (a *AuthController) renderError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "unexpected error"

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		message = richErr.Message
		a.Logger.Error("request failed: %s category=%s details=%s",
			richErr.Message, richErr.Category, print.MaybePrettyJSON(richErr.Metadata))
		switch richErr.Category {
		case goerrors.CategoryAuth:
			status = fiber.StatusUnauthorized
		case goerrors.CategoryValidation, goerrors.CategoryBadInput:
			status = fiber.StatusBadRequest
		case goerrors.CategoryNotFound:
			status = fiber.StatusNotFound
		case goerrors.CategoryRateLimit:
			status = fiber.StatusTooManyRequests
		case goerrors.CategoryConflict:
			status = fiber.StatusConflict
		}
	}

	return c.Status(status).JSON(fiber.Map{"error": message})
}
