package pipeline

import (
	"github.com/plopez-famaf/sentra/internal/domain"
)

// Правила извлечения полей результата в контекст pipeline.
//
// Таблица закрытая: после успешного шага поля data результата
// поднимаются в top-level ключи контекста, чтобы последующие шаги
// и условия ссылались на них по короткому имени. Command type без
// правила попадает в generic-ветку: shallow-merge всех top-level
// полей data прямо в контекст.
var contextExtractors = map[string][]fieldMapping{
	"scan": {
		{from: "threats", to: "lastThreats"},
		{from: "vulnerabilities", to: "lastVulnerabilities"},
	},
	"auth": {
		{from: "token", to: "authToken"},
		{from: "user", to: "currentUser"},
	},
	"threat": {
		{from: "events", to: "threatEvents"},
		{from: "indicators", to: "threatIndicators"},
	},
}

// fieldMapping — перенос одного поля data в ключ контекста.
type fieldMapping struct {
	from string
	to   string
}

// applyResult записывает результат завершённого шага в контекст:
//  1. Полный результат под ключом step_<id>.
//  2. Извлечение полей data по правилу command type.
//
// Вызывается только из управляющего цикла scheduler'а — это
// единственный писатель контекста.
func applyResult(context map[string]any, step *domain.Step, result *domain.CommandResult) {
	context["step_"+step.ID] = map[string]any{
		"message": result.Message,
		"data":    result.Data,
	}

	if result.Data == nil {
		return
	}

	mappings, ok := contextExtractors[step.CommandType()]
	if !ok {
		// Generic-ветка: shallow-merge всех полей data
		for k, v := range result.Data {
			context[k] = v
		}
		return
	}

	for _, m := range mappings {
		if v, ok := result.Data[m.from]; ok {
			context[m.to] = v
		}
	}
}

// snapshotContext возвращает shallow-копию контекста для передачи
// в конкурентно выполняющийся шаг.
func snapshotContext(context map[string]any) map[string]any {
	snapshot := make(map[string]any, len(context))
	for k, v := range context {
		snapshot[k] = v
	}
	return snapshot
}
