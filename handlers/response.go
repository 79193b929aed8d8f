package handlers

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/netkrida/myhome-sub004/apperror"
)

var validate = validator.New()

const dateLayout = "2006-01-02"

type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(Envelope{Success: true, Data: data})
}

func created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(Envelope{Success: true, Data: data})
}

// fiberCodes names the errors fiber and the JWT middleware raise themselves.
var fiberCodes = map[int]apperror.Kind{
	fiber.StatusBadRequest:       apperror.KindValidation,
	fiber.StatusUnauthorized:     "UNAUTHORIZED",
	fiber.StatusForbidden:        apperror.KindForbidden,
	fiber.StatusNotFound:         apperror.KindNotFound,
	fiber.StatusMethodNotAllowed: "METHOD_NOT_ALLOWED",
	fiber.StatusUpgradeRequired:  "UPGRADE_REQUIRED",
}

// ErrorHandler renders every error as the failure envelope. Internal errors
// are logged with the request id and reported generically.
func ErrorHandler(c *fiber.Ctx, err error) error {
	requestID, _ := c.Locals("requestid").(string)

	var fe *fiber.Error
	if errors.As(err, &fe) {
		kind, known := fiberCodes[fe.Code]
		if !known {
			kind = apperror.KindInternal
		}
		if fe.Code >= fiber.StatusInternalServerError {
			log.Printf("[ERROR] %s %s request_id=%s: %v", c.Method(), c.Path(), requestID, err)
		}
		return c.Status(fe.Code).JSON(Envelope{Error: &ErrorBody{Code: string(kind), Message: fe.Message, RequestID: requestID}})
	}

	kind := apperror.KindOf(err)
	message := err.Error()
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if kind == apperror.KindInternal {
		log.Printf("🔥 [ERROR] %s %s request_id=%s: %v", c.Method(), c.Path(), requestID, err)
		message = "internal server error"
	} else if kind == apperror.KindGateway {
		log.Printf("[WARN] %s %s request_id=%s: %v", c.Method(), c.Path(), requestID, err)
	}
	return c.Status(apperror.HTTPStatus(kind)).JSON(Envelope{Error: &ErrorBody{Code: string(kind), Message: message, RequestID: requestID}})
}

// parseBody decodes and validates a JSON request body.
func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperror.Validation("cannot parse request body")
	}
	if err := validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, strings.ToLower(fe.Field())+" ("+fe.Tag()+")")
			}
			return apperror.Validation("invalid fields: %s", strings.Join(fields, ", "))
		}
		return apperror.Validation("%s", err.Error())
	}
	return nil
}

func uuidParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid %s", name)
	}
	return id, nil
}

func parseDate(value, field string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, apperror.Validation("%s must be a date in YYYY-MM-DD format", field)
	}
	return t, nil
}
