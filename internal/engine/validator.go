package engine

import (
	"fmt"
	"strings"

	"github.com/plopez-famaf/sentra/internal/domain"
)

// ValidationResult — результат валидации набора шагов.
type ValidationResult struct {
	// Valid — true, если ошибок нет.
	Valid bool

	// Errors — список ошибок в человекочитаемом виде.
	Errors []string
}

// Err сворачивает все ошибки валидации в одну error или nil.
func (r *ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidGraph, strings.Join(r.Errors, "; "))
}

// цвета узлов для обхода в глубину.
type color int

const (
	white color = iota // не посещён
	gray               // в текущем пути обхода
	black              // обход завершён
)

// ValidateSteps выполняет полную статическую проверку набора шагов.
//
// Проверки, по порядку:
//  1. Наличие шагов и непустые ID
//  2. Уникальность ID (каждый дубликат перечисляется)
//  3. Существование всех зависимостей (ошибка на каждую пару шаг/зависимость)
//  4. Отсутствие циклов — DFS с трёхцветной раскраской
//
// Валидация собирает все ошибки, а не останавливается на первой.
func ValidateSteps(steps []domain.Step) ValidationResult {
	result := ValidationResult{Valid: true}

	if len(steps) == 0 {
		result.addError(NewValidationError("", "steps", ErrEmptySteps.Error(), ErrEmptySteps))
		return result
	}

	// 1-2. Уникальность ID
	seen := make(map[string]bool, len(steps))
	for i := range steps {
		step := &steps[i]
		if step.ID == "" {
			result.addError(NewValidationError("", "id",
				fmt.Sprintf("step #%d has empty ID", i), ErrEmptyStepID))
			continue
		}
		if seen[step.ID] {
			result.addError(NewValidationError(step.ID, "id",
				"duplicate step ID", ErrDuplicateStepID))
			continue
		}
		seen[step.ID] = true
	}

	// 3. Существование зависимостей
	for i := range steps {
		step := &steps[i]
		for _, dep := range step.DependsOn {
			if !seen[dep] {
				result.addError(NewValidationError(step.ID, "depends_on",
					fmt.Sprintf("depends on unknown step: %s", dep), ErrMissingDependency))
			}
		}
	}

	// 4. Циклы. Имеет смысл только если зависимости разрешимы.
	if result.Valid && hasCycle(steps) {
		result.addError(NewValidationError("", "depends_on",
			ErrCyclicDependency.Error(), ErrCyclicDependency))
	}

	return result
}

// addError добавляет ошибку и сбрасывает Valid.
func (r *ValidationResult) addError(err *ValidationError) {
	r.Valid = false
	r.Errors = append(r.Errors, err.Error())
}

// hasCycle проверяет граф зависимостей на циклы.
//
// Классический DFS с тремя цветами: ребро в "серый" узел
// (находящийся в текущем пути обхода) означает цикл.
func hasCycle(steps []domain.Step) bool {
	deps := make(map[string][]string, len(steps))
	for i := range steps {
		deps[steps[i].ID] = steps[i].DependsOn
	}

	colors := make(map[string]color, len(steps))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = gray
		for _, dep := range deps[id] {
			switch colors[dep] {
			case gray:
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		colors[id] = black
		return false
	}

	for i := range steps {
		if colors[steps[i].ID] == white {
			if visit(steps[i].ID) {
				return true
			}
		}
	}
	return false
}
