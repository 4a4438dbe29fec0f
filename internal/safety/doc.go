// Package safety содержит rule-based валидатор команд.
//
// Валидатор — гейт перед выполнением каждого шага: правила блокируют
// деструктивные команды и размечают остальные уровнем риска. Шаг с
// запрещённой командой падает как обычный (Optional учитывается),
// retry для него не выполняется повторной проверкой — вердикт
// детерминирован.
package safety
