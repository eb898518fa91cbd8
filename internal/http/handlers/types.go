// Package handlers implements the API operations.
package handlers

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/splat-replay/splat-replay/internal/models"
)

// apiError translates domain error kinds into HTTP status errors so command
// handlers can return domain errors untouched.
func apiError(err error) error {
	if err == nil {
		return nil
	}
	switch models.KindOf(err) {
	case models.KindValidation:
		return huma.Error400BadRequest(err.Error())
	case models.KindNotFound:
		return huma.Error404NotFound(err.Error())
	case models.KindConflict, models.KindRuleViolation:
		return huma.Error409Conflict(err.Error())
	case models.KindAuthentication:
		return huma.Error401Unauthorized(err.Error())
	case models.KindDevice:
		return huma.Error503ServiceUnavailable(err.Error())
	default:
		return huma.Error500InternalServerError(err.Error())
	}
}
