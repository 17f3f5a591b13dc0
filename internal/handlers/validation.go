package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/andcoolsystems/eldraxis/pkg/errors"
	"github.com/andcoolsystems/eldraxis/pkg/response"
	appValidator "github.com/andcoolsystems/eldraxis/pkg/validator"
)

// bindQuery binds the query string into dest and runs struct validation rules.
// When binding or validation fails, a 400 envelope is written and false is returned.
func bindQuery[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindQuery(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid query parameters"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest(formatValidationError(err)))
		return false
	}

	return true
}

// identifierParam returns the trimmed :nickname path segment. Segments that
// can be neither a handle nor an account id are answered with the same 404
// the identity service would give, without asking it.
func identifierParam(c *gin.Context) (string, bool) {
	identifier := strings.TrimSpace(c.Param("nickname"))
	if !appValidator.ValidIdentifier(identifier) {
		response.Error(c, appErrors.ErrProfileNotFound)
		return "", false
	}
	return identifier, true
}

func formatValidationError(err error) string {
	if err == nil {
		return "invalid request"
	}

	ve, ok := err.(appValidator.ValidationErrors)
	if !ok || len(ve) == 0 {
		return "invalid request"
	}

	messages := make([]string, 0, len(ve))
	for _, failure := range ve {
		field := prettifyFieldName(failure.Field)
		switch failure.Tag {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "min", "gte":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", field, failure.Param))
		case "max", "lte":
			messages = append(messages, fmt.Sprintf("%s must be at most %s", field, failure.Param))
		case "identifier":
			messages = append(messages, fmt.Sprintf("%s must be a player name or uuid", field))
		default:
			if failure.Param != "" {
				messages = append(messages, fmt.Sprintf("%s failed validation: %s=%s", field, failure.Tag, failure.Param))
			} else {
				messages = append(messages, fmt.Sprintf("%s failed validation: %s", field, failure.Tag))
			}
		}
	}
	return strings.Join(messages, "; ")
}

func prettifyFieldName(name string) string {
	if name == "" {
		return "field"
	}
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ToLower(name)
}
