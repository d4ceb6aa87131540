package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/coffeepula/pos-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
}

// SetLogLevel aligns the controller logger with the application log level
func SetLogLevel(level logrus.Level) {
	log.SetLevel(level)
}

// respondError maps service errors onto HTTP statuses. Unexpected errors are
// logged and answered with a generic message.
func respondError(ctx *gin.Context, err error) {
	var notFound *services.NotFoundError
	var validation *services.ValidationError
	var stock *services.InsufficientStockError

	switch {
	case errors.As(err, &stock):
		ctx.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrInsufficientStock, stock.Error(), map[string]interface{}{
			"ingredient_id": stock.IngredientID,
			"ingredient":    stock.Ingredient,
			"unit":          stock.Unit,
			"required":      stock.Required,
			"available":     stock.Available,
		}))
	case errors.As(err, &validation):
		var details map[string]interface{}
		if validation.Field != "" {
			details = map[string]interface{}{"field": validation.Field}
		}
		ctx.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrValidationFailed, validation.Error(), details))
	case errors.As(err, &notFound):
		ctx.JSON(http.StatusNotFound, models.NewAPIError(models.ErrNotFound, notFound.Error()))
	case errors.Is(err, context.DeadlineExceeded):
		log.WithError(err).WithField("path", ctx.FullPath()).Warn("Request timed out")
		ctx.JSON(http.StatusGatewayTimeout, models.NewAPIError(models.ErrTimeout, "Request timed out"))
	default:
		log.WithError(err).WithFields(logrus.Fields{
			"method": ctx.Request.Method,
			"path":   ctx.FullPath(),
		}).Error("Unexpected error")
		ctx.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "Internal server error"))
	}
}

// respondBindError answers a malformed request body
func respondBindError(ctx *gin.Context, err error) {
	ctx.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrBadRequest, "Invalid request body", map[string]interface{}{
		"reason": err.Error(),
	}))
}
