package model

import (
	"slices"

	"github.com/shopspring/decimal"
)

// CartEntry — строка корзины; по форме это тот же Product
// количества нет: товар либо в корзине, либо нет
type CartEntry = Product

// Cart — упорядоченный список позиций без повторов по ID
type Cart []CartEntry

// Contains сообщает, есть ли в корзине товар с таким ID
func (c Cart) Contains(id int) bool {
	return slices.ContainsFunc(c, func(e CartEntry) bool { return e.ID == id })
}

// WithProduct возвращает корзину с добавленным товаром
// если товар с таким ID уже есть, корзина возвращается без изменений
func (c Cart) WithProduct(p Product) Cart {
	if c.Contains(p.ID) {
		return c
	}
	out := make(Cart, 0, len(c)+1)
	out = append(out, c...)
	return append(out, p)
}

// Without возвращает корзину без всех позиций с указанным ID
func (c Cart) Without(id int) Cart {
	out := make(Cart, 0, len(c))
	for _, e := range c {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}

// Total — сумма цен, округлённая до копеек (half away from zero)
func (c Cart) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range c {
		sum = sum.Add(decimal.NewFromFloat(e.Price))
	}
	return sum.Round(2)
}

// FormatTotal форматирует сумму так, как её показывает витрина: "5.00"
func FormatTotal(d decimal.Decimal) string {
	return d.StringFixed(2)
}
