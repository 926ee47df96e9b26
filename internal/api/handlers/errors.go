package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bess-dispatch/internal/api/models"
	"bess-dispatch/internal/model"
)

// writeError maps the optimizer's error taxonomy onto HTTP. Bad inputs are
// 400, a window the solver could not close is 422, everything else 500.
func writeError(c *gin.Context, err error) {
	var (
		dataErr   *model.DataError
		confErr   *model.ConfigurationError
		solverErr *model.SolverError
		cancelErr *model.CancellationError
	)
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"
	switch {
	case errors.As(err, &dataErr):
		status, code = http.StatusBadRequest, "INVALID_DATA"
	case errors.As(err, &confErr):
		status, code = http.StatusBadRequest, "INVALID_CONFIG"
	case errors.As(err, &solverErr):
		status, code = http.StatusUnprocessableEntity, "SOLVER_FAILED"
	case errors.As(err, &cancelErr):
		status, code = http.StatusBadRequest, "CANCELLED"
	}
	c.JSON(status, models.ErrorResponse{
		Error: models.ErrorDetail{Code: code, Message: err.Error()},
	})
}

func writeBadRequest(c *gin.Context, code string, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error: models.ErrorDetail{Code: code, Message: err.Error()},
	})
}
