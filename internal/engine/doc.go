// Package engine содержит статический анализ набора шагов.
//
// Включает:
//   - validator.go — проверка графа зависимостей (уникальность ID,
//     существование зависимостей, отсутствие циклов)
//   - condition.go — безопасный вычислитель булевых выражений
//     для условий шагов
//
// Engine не выполняет шаги — только отвечает на вопросы
// "валиден ли граф" и "истинно ли условие над контекстом".
package engine
