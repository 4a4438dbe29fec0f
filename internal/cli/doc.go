// Package cli содержит команды CLI-клиента (cobra).
//
// CLI общается только с HTTP API сервера и не импортирует internal/api —
// response-типы дублируются в client.go, чтобы клиент оставался
// независимым от серверных структур.
package cli
