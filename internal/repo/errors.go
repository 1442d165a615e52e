package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrUnknownCategory — категория очистки не входит в известный список.
	ErrUnknownCategory = errors.New("unknown cleanup category")
)
