// Package domain содержит основные типы данных Sentra.
//
// Типы не содержат бизнес-логики выполнения — только структуру данных
// и переходы жизненного цикла. Используются всеми слоями: engine,
// pipeline, repo, api.
package domain
