package domain

import (
	"strings"
	"time"
)

// Step — один шаг pipeline.
//
// Step неизменяем после создания pipeline. Первый токен Command —
// command type, по нему выбирается executor и правило извлечения
// контекста.
type Step struct {
	// ID — уникальный идентификатор шага в рамках pipeline.
	// Используется в DependsOn и как ключ результатов.
	ID string `json:"id"`

	// Command — командная строка шага, например "scan network --deep".
	// Первый токен ("scan") — command type.
	Command string `json:"command"`

	// Params — параметры команды, передаются executor'у как есть.
	Params map[string]any `json:"params,omitempty"`

	// DependsOn — список ID шагов, от которых зависит этот шаг.
	// Шаг диспетчеризуется только после успешного завершения всех зависимостей.
	DependsOn []string `json:"depends_on,omitempty"`

	// Optional — если true, падение шага не останавливает pipeline.
	// Упавший optional шаг никогда не попадает в completed, поэтому
	// его зависимые шаги не станут готовыми.
	Optional bool `json:"optional,omitempty"`

	// Timeout — таймаут одной попытки выполнения.
	Timeout time.Duration `json:"timeout,omitempty"`

	// RetryCount — количество дополнительных попыток сверх первой.
	RetryCount int `json:"retry_count,omitempty"`

	// Condition — булево выражение над контекстом pipeline.
	// Пустая строка — шаг всегда готов после зависимостей.
	// Например: "lastThreats != nil && len(lastThreats) > 0"
	Condition string `json:"condition,omitempty"`
}

// CommandType возвращает тип команды — первый токен Command.
// Для пустой команды возвращает пустую строку.
func (s *Step) CommandType() string {
	fields := strings.Fields(s.Command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
