// Package repo содержит слой доступа к PostgreSQL.
//
// Хранит архив выполнений pipeline: реестр в памяти остаётся
// источником истины во время выполнения, архив переживает рестарты
// и обслуживает исторические запросы.
//
// Используется pgx/v5 с connection pool.
package repo
