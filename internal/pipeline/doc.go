// Package pipeline содержит ядро выполнения pipeline.
//
// Включает:
//   - manager.go   — реестр жизненного цикла pipelines (create/execute/
//     cancel/cleanup/statistics)
//   - scheduler.go — управляющий цикл: готовность шагов, ограниченная
//     конкурентная диспетчеризация, гонка первого завершения,
//     обнаружение deadlock
//   - runner.go    — выполнение одного шага: safety-gate, таймаут,
//     retry с экспоненциальным backoff
//   - context.go   — общий контекст и извлечение полей результатов
//   - rollback.go  — компенсирующие действия при фатальном падении
//   - executor.go  — контракты Executor/RollbackHandler и их реестры
//   - safety.go    — контракт внешнего safety-валидатора
//
// Контекст pipeline — single-writer: его мутирует только управляющий
// цикл между итерациями; выполняющимся шагам передаётся снимок.
package pipeline
