package order

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/nabookma/bookstore/internal/models"
	"github.com/nabookma/bookstore/internal/mykafka"
)

// statusRank orders the lifecycle; higher never goes back to lower.
func statusRank(status string) int {
	switch status {
	case models.StatusPending:
		return 0
	case models.StatusProcessing:
		return 1
	case models.StatusCompleted:
		return 2
	default:
		return -1
	}
}

func validStatus(status string) bool {
	return statusRank(status) >= 0
}

func (h *OrderHandler) publish(c echo.Context, customerID uint, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, mykafka.TopicOrderEvents, fmt.Sprint(customerID), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
