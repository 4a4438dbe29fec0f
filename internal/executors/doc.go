// Package executors содержит встроенные executor'ы шагов.
//
// Command type шага — первое слово команды. Встроенные типы:
//   - delay: context-aware задержка
//   - http: HTTP-запрос к внешней системе
//   - echo: pass-through параметров в результат
//
// Доменные типы (scan, auth, threat, ...) регистрируются поверх при
// сборке сервера — executor'ы реализуют pipeline.Executor.
package executors
