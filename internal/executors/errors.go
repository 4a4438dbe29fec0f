package executors

import "errors"

// Ошибки встроенных executor'ов.
var (
	// ErrHTTPRequest — ошибка выполнения HTTP-запроса.
	ErrHTTPRequest = errors.New("http request failed")
)
