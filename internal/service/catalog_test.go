package service_test

import (
	"strings"
	"testing"

	"github.com/talk2sql/talk2sql/internal/models"
	"github.com/talk2sql/talk2sql/internal/service"
)

func TestFormatDescriptors(t *testing.T) {
	descriptors := []models.SchemaDescriptor{
		{
			Name:        "employees",
			Description: "Table: employees",
			Columns:     []string{"emp_id", "first_name", "dept_id"},
			ColumnNotes: map[string]string{
				"emp_id":  "integer NOT NULL",
				"dept_id": "integer",
			},
			Relationships: []string{"employees.dept_id -> departments.dept_id"},
		},
		{
			Name:        "departments",
			Description: "Table: departments",
			Columns:     []string{"dept_id", "dept_name"},
		},
	}

	got := service.FormatDescriptors(descriptors)

	for _, want := range []string{
		"TABLE: employees",
		"Columns: emp_id, first_name, dept_id",
		"- emp_id: integer NOT NULL",
		"Joins: employees.dept_id -> departments.dept_id",
		"TABLE: departments",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	// Column details follow declared column order, so output is stable.
	if strings.Index(got, "- emp_id:") > strings.Index(got, "- dept_id:") {
		t.Error("column details not in declared column order")
	}

	// Deterministic across calls.
	if again := service.FormatDescriptors(descriptors); again != got {
		t.Error("FormatDescriptors is not deterministic")
	}
}

func TestFormatDescriptorsEmpty(t *testing.T) {
	got := service.FormatDescriptors(nil)
	if got != "(No schema context available.)" {
		t.Errorf("empty catalog output = %q", got)
	}
}
