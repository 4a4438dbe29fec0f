package engine

import (
	"strings"
	"testing"

	"github.com/plopez-famaf/sentra/internal/domain"
)

func TestValidateSteps_ValidChain(t *testing.T) {
	steps := []domain.Step{
		{ID: "A", Command: "scan network"},
		{ID: "B", Command: "threat hunt", DependsOn: []string{"A"}},
		{ID: "C", Command: "report generate", DependsOn: []string{"B"}},
	}

	result := ValidateSteps(steps)
	if !result.Valid {
		t.Fatalf("expected valid graph, got errors: %v", result.Errors)
	}
	if result.Err() != nil {
		t.Errorf("Err() should be nil for valid graph")
	}
}

func TestValidateSteps_Diamond(t *testing.T) {
	// A → B → D
	// A → C → D
	steps := []domain.Step{
		{ID: "A", Command: "scan network"},
		{ID: "B", Command: "scan hosts", DependsOn: []string{"A"}},
		{ID: "C", Command: "scan ports", DependsOn: []string{"A"}},
		{ID: "D", Command: "report generate", DependsOn: []string{"B", "C"}},
	}

	result := ValidateSteps(steps)
	if !result.Valid {
		t.Fatalf("diamond graph should be valid, got: %v", result.Errors)
	}
}

func TestValidateSteps_Empty(t *testing.T) {
	result := ValidateSteps(nil)
	if result.Valid {
		t.Fatal("empty step list should be invalid")
	}
}

func TestValidateSteps_DuplicateIDs(t *testing.T) {
	steps := []domain.Step{
		{ID: "A", Command: "scan network"},
		{ID: "A", Command: "scan hosts"},
		{ID: "B", Command: "auth login"},
		{ID: "B", Command: "auth refresh"},
	}

	result := ValidateSteps(steps)
	if result.Valid {
		t.Fatal("duplicate IDs should be invalid")
	}

	// Каждый дубликат перечисляется отдельно
	var dupes int
	for _, e := range result.Errors {
		if strings.Contains(e, "duplicate step ID") {
			dupes++
		}
	}
	if dupes != 2 {
		t.Errorf("expected 2 duplicate errors, got %d: %v", dupes, result.Errors)
	}
}

func TestValidateSteps_MissingDependency(t *testing.T) {
	steps := []domain.Step{
		{ID: "A", Command: "scan network", DependsOn: []string{"ghost"}},
		{ID: "B", Command: "auth login", DependsOn: []string{"ghost", "phantom"}},
	}

	result := ValidateSteps(steps)
	if result.Valid {
		t.Fatal("missing dependencies should be invalid")
	}

	// Ошибка на каждую пару (шаг, отсутствующая зависимость)
	var missing int
	for _, e := range result.Errors {
		if strings.Contains(e, "unknown step") {
			missing++
		}
	}
	if missing != 3 {
		t.Errorf("expected 3 missing-dependency errors, got %d: %v", missing, result.Errors)
	}
}

func TestValidateSteps_Cycle(t *testing.T) {
	steps := []domain.Step{
		{ID: "A", Command: "scan network", DependsOn: []string{"C"}},
		{ID: "B", Command: "threat hunt", DependsOn: []string{"A"}},
		{ID: "C", Command: "report generate", DependsOn: []string{"B"}},
	}

	result := ValidateSteps(steps)
	if result.Valid {
		t.Fatal("cyclic graph should be invalid")
	}

	found := false
	for _, e := range result.Errors {
		if strings.Contains(e, "circular dependencies detected") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected circular dependency error, got: %v", result.Errors)
	}
}

func TestValidateSteps_SelfDependency(t *testing.T) {
	steps := []domain.Step{
		{ID: "A", Command: "scan network", DependsOn: []string{"A"}},
	}

	result := ValidateSteps(steps)
	if result.Valid {
		t.Fatal("self-dependency is a cycle and should be invalid")
	}
}

func TestValidateSteps_EmptyID(t *testing.T) {
	steps := []domain.Step{
		{ID: "", Command: "scan network"},
	}

	result := ValidateSteps(steps)
	if result.Valid {
		t.Fatal("empty step ID should be invalid")
	}
}
