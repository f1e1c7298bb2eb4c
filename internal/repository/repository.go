package repository

import "errors"

// ErrKeyNotFound возвращается бэкендами, когда ключа нет в хранилище
var ErrKeyNotFound = errors.New("key not found")

// UpdateFunc получает текущее значение ключа (found=false, если ключа нет)
// и возвращает новое значение, которое будет записано атомарно
type UpdateFunc func(current []byte, found bool) ([]byte, error)
