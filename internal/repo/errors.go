package repo

import "errors"

// Ошибки архива выполнений.
var (
	// ErrNotFound — выполнение не найдено в архиве.
	ErrNotFound = errors.New("execution not found")

	// ErrAlreadyExists — выполнение с таким ID уже в архиве.
	ErrAlreadyExists = errors.New("execution already exists")
)
