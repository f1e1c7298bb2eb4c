package model

import "time"

// типы операций над корзиной, приходящих через очередь команд
const (
	OpAdd    = "add"
	OpRemove = "remove"
	OpClear  = "clear"
)

// CartCommand — сообщение из топика команд
type CartCommand struct {
	Op        string   `json:"op" validate:"required,oneof=add remove clear"`
	Product   *Product `json:"product,omitempty" validate:"required_if=Op add"`
	ProductID int      `json:"product_id,omitempty" validate:"required_if=Op remove,gte=0"`
}

// Validate проверяет команду, включая вложенный товар
func (c *CartCommand) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Product != nil {
		return c.Product.Validate()
	}
	return nil
}

// типы событий, которые публикуются после успешного изменения корзины
const (
	EventItemAdded   = "item_added"
	EventItemRemoved = "item_removed"
	EventCartCleared = "cart_cleared"
)

// CartEvent — сообщение для топика событий
type CartEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	ProductID  int       `json:"product_id,omitempty"`
	Count      int       `json:"count"`
	Total      string    `json:"total"`
	OccurredAt time.Time `json:"occurred_at"`
}
