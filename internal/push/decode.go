package push

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
)

var errMissingOrderID = errors.New("order update without id")

// decodeOrder parses an order update published by the kitchen backend.
func decodeOrder(payload []byte) (domain.Order, error) {
	var order domain.Order
	if err := json.Unmarshal(payload, &order); err != nil {
		return domain.Order{}, fmt.Errorf("parse order update: %w", err)
	}
	if order.ID == uuid.Nil {
		return domain.Order{}, errMissingOrderID
	}
	return order, nil
}
