package model

import (
	"github.com/go-playground/validator/v10"
)

// Product представляет товар из удалённого каталога
// теги validate используются для проверки данных, пришедших извне (HTTP, кафка)
type Product struct {
	ID          int     `json:"id" validate:"required,gt=0"`
	Title       string  `json:"title" validate:"required"`
	Price       float64 `json:"price" validate:"gte=0"`
	Image       string  `json:"image" validate:"omitempty,url"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
	Rating      *Rating `json:"rating,omitempty"`
}

// Rating — необязательный блок рейтинга из каталога
type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

var validate = validator.New()

// Validate проверяет корректность структуры Product на основе тегов validate
func (p *Product) Validate() error {
	return validate.Struct(p)
}
