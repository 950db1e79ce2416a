package basket

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/nabookma/bookstore/internal/mykafka"
)

func (h *BasketHandler) publish(c echo.Context, customerID uint, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, mykafka.TopicBasketEvents, fmt.Sprint(customerID), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
