// Package api содержит HTTP API сервера (REST, JSON).
//
// Архитектура:
//   - Handler — обработчики с зависимостями (manager, archive, publisher)
//   - dto.go — структуры запросов/ответов и маппинг domain ↔ DTO
//   - response.go — унифицированные JSON-ответы и коды ошибок
//   - middleware.go — logging и recovery
//
// Маршрутизация — stdlib http.ServeMux с method patterns (Go 1.22+).
package api
