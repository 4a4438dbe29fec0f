// Package janitor содержит периодическую очистку реестра и архива.
//
// По cron-расписанию удаляет завершённые pipeline старше порога из
// in-memory реестра и записи старше порога из архива. Та же логика
// доступна по требованию через POST /api/v1/cleanup.
package janitor
