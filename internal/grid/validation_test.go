package grid

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateValue(t *testing.T) {
	tests := []struct {
		name    string
		col     ColumnDefinition
		value   any
		row     Row
		wantErr string
	}{
		{"required empty", ColumnDefinition{Key: "name", Rules: []Rule{Required()}}, "  ", nil, "required field is empty"},
		{"optional empty skips rules", ColumnDefinition{Key: "name", Rules: []Rule{MinLength(3)}}, "", nil, ""},
		{"number ok", ColumnDefinition{Key: "qty", Type: FieldNumber}, "1,200", nil, ""},
		{"number bad", ColumnDefinition{Key: "qty", Type: FieldNumber}, "lots", nil, "invalid number format"},
		{"currency min", ColumnDefinition{Key: "price", Type: FieldCurrency, Rules: []Rule{Min(0)}}, -0.01, nil, "must be at least 0"},
		{"max", ColumnDefinition{Key: "qty", Type: FieldNumber, Rules: []Rule{Max(10)}}, 11, nil, "must be at most 10"},
		{"date ok", ColumnDefinition{Key: "d", Type: FieldDate}, "2024-01-15", nil, ""},
		{"date bad", ColumnDefinition{Key: "d", Type: FieldDate}, "someday", nil, "invalid date format"},
		{"boolean bad", ColumnDefinition{Key: "b", Type: FieldBoolean}, "maybe", nil, "must be yes/no"},
		{"email bad", ColumnDefinition{Key: "e", Type: FieldEmail}, "not-an-email", nil, "invalid email address"},
		{"email ok", ColumnDefinition{Key: "e", Type: FieldEmail}, "ops@example.com", nil, ""},
		{"url bad", ColumnDefinition{Key: "u", Type: FieldURL}, "example", nil, "invalid URL"},
		{"select unknown", ColumnDefinition{Key: "s", Type: FieldSelect, Options: []Option{{Value: "a"}}}, "b", nil, "value must be one of: a"},
		{"multi-select unknown", ColumnDefinition{Key: "m", Type: FieldMultiSelect, Options: []Option{{Value: "a"}, {Value: "b"}}}, []any{"a", "c"}, nil, "value must be one of: a, b"},
		{"max length", ColumnDefinition{Key: "n", Rules: []Rule{MaxLength(3)}}, "abcd", nil, "must be at most 3 characters"},
		{"pattern", ColumnDefinition{Key: "sku", Rules: []Rule{{Kind: RulePattern, Pattern: `^[A-Z]{3}-\d+$`, Message: "SKU must look like ABC-123"}}}, "abc", nil, "SKU must look like ABC-123"},
		{"expr ok", ColumnDefinition{Key: "discount", Type: FieldNumber, Rules: []Rule{Expr("value <= row.price", "discount exceeds price")}}, 5.0, Row{"price": 10.0}, ""},
		{"expr fails", ColumnDefinition{Key: "discount", Type: FieldNumber, Rules: []Rule{Expr("value <= row.price", "discount exceeds price")}}, 15.0, Row{"price": 10.0}, "discount exceeds price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateValue(tt.col, tt.value, tt.row)
			if tt.wantErr == "" {
				if len(errs) != 0 {
					t.Errorf("ValidateValue = %v, want no errors", errs)
				}
				return
			}
			if len(errs) == 0 {
				t.Fatalf("ValidateValue = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(errs[0].Message, tt.wantErr) {
				t.Errorf("message = %q, want to contain %q", errs[0].Message, tt.wantErr)
			}
			if errs[0].Column != tt.col.Key {
				t.Errorf("column = %q, want %q", errs[0].Column, tt.col.Key)
			}
		})
	}
}

func TestSchemaValidate(t *testing.T) {
	s := testSchema()

	if err := s.Validate(Row{"name": "Desk", "price": 5}, nil); err != nil {
		t.Errorf("Validate(valid) = %v", err)
	}

	err := s.Validate(Row{"name": "", "price": "free", "ghost": 1}, Row{"id": "1"})
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("Validate = %v, want ValidationErrors", err)
	}
	if len(verrs) != 3 {
		t.Fatalf("got %d errors, want 3: %v", len(verrs), verrs)
	}
	// Keys are validated in sorted order.
	if verrs[0].Column != "ghost" || verrs[1].Column != "name" || verrs[2].Column != "price" {
		t.Errorf("columns = %s %s %s", verrs[0].Column, verrs[1].Column, verrs[2].Column)
	}
}

func TestSchemaValidateRow(t *testing.T) {
	s := testSchema()
	err := s.ValidateRow(Row{"price": 3})
	var verrs ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) != 1 || verrs[0].Column != "name" {
		t.Errorf("ValidateRow = %v, want required error on name", err)
	}
}

func TestNewSchema(t *testing.T) {
	tests := []struct {
		name    string
		cols    []ColumnDefinition
		wantErr bool
	}{
		{"ok", []ColumnDefinition{{Key: "a"}, {Key: "b", Type: FieldNumber}}, false},
		{"empty key", []ColumnDefinition{{Key: ""}}, true},
		{"duplicate", []ColumnDefinition{{Key: "a"}, {Key: "a"}}, true},
		{"bad type", []ColumnDefinition{{Key: "a", Type: "matrix"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchema(tt.cols)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSchema error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	s, _ := NewSchema([]ColumnDefinition{{Key: "title"}, {Key: "price", Type: FieldNumber}})
	col, _ := s.Column("title")
	if col.Type != FieldText || col.Header != "title" {
		t.Errorf("defaults = %+v, want text type and header from key", col)
	}
	if got := s.Searchable(); len(got) != 1 || got[0] != "title" {
		t.Errorf("Searchable = %v, want [title]", got)
	}
}
