package models

import (
	"strings"
	"testing"

	"github.com/gleamops/fieldops_backend/problem"
	"github.com/shopspring/decimal"
)

func src(s string) *string { return &s }
func static(s string) *string { return &s }

func TestValidateMappingFieldBatchUnknownSources(t *testing.T) {
	err := ValidateMappingFieldBatch([]*NewMappingField{
		{OutputColumnName: "A", SourceField: src("staff_code"), IsEnabled: true},
		{OutputColumnName: "B", SourceField: src("bogus_one"), IsEnabled: true},
		{OutputColumnName: "C", SourceField: src("bogus_two"), IsEnabled: true},
	})
	if err == nil {
		t.Fatalf("expected validation error for unknown source fields")
	}
	p := problem.FromError(err)
	if p.Code != "SHIFT_002" {
		t.Fatalf("expected SHIFT_002, got %s", p.Code)
	}
	// every bad name must be reported, not just the first
	if !strings.Contains(p.Detail, "bogus_one") || !strings.Contains(p.Detail, "bogus_two") {
		t.Fatalf("detail should name all unknown fields: %s", p.Detail)
	}
}

func TestValidateMappingFieldBatchSourceOrStatic(t *testing.T) {
	err := ValidateMappingFieldBatch([]*NewMappingField{
		{OutputColumnName: "Empty", IsEnabled: true},
	})
	if err == nil {
		t.Fatalf("expected error for field with neither source nor static value")
	}
	if !strings.Contains(problem.FromError(err).Detail, "Empty") {
		t.Fatalf("detail should name the offending column")
	}

	// a static-only field is fine
	err = ValidateMappingFieldBatch([]*NewMappingField{
		{OutputColumnName: "Const", StaticValue: static("X"), IsEnabled: true},
	})
	if err != nil {
		t.Fatalf("static-only field should validate: %v", err)
	}
}

func TestValidateMappingFieldBatchRequiresEnabled(t *testing.T) {
	err := ValidateMappingFieldBatch([]*NewMappingField{
		{OutputColumnName: "A", SourceField: src("staff_code"), IsEnabled: false},
		{OutputColumnName: "B", SourceField: src("gross_pay"), IsEnabled: false},
	})
	if err == nil {
		t.Fatalf("expected error when no field is enabled")
	}
	if !strings.Contains(problem.FromError(err).Detail, "enabled") {
		t.Fatalf("detail should mention enabled fields: %s", problem.FromError(err).Detail)
	}
}

func TestValidateDelimiter(t *testing.T) {
	for _, d := range []string{",", ";", "|", "\t"} {
		if err := validateDelimiter(d); err != nil {
			t.Fatalf("delimiter %q should validate: %v", d, err)
		}
	}
	// the delimiter column is one byte wide and the writer uses one byte
	for _, d := range []string{"", ",,", "—", "\"", "\n", "\r"} {
		err := validateDelimiter(d)
		if err == nil {
			t.Fatalf("delimiter %q should be rejected", d)
		}
		if problem.FromError(err).Code != "SHIFT_002" {
			t.Fatalf("delimiter %q: expected SHIFT_002, got %s", d, problem.FromError(err).Code)
		}
	}
}

func TestRenderCell(t *testing.T) {
	mapping := &PayrollMapping{DecimalFormat: "0.00", DateFormat: "01/02/2006"}
	run := &PayrollRun{PeriodStart: "2026-08-24", PeriodEnd: "2026-08-30"}
	row := &PayrollRunRow{
		StaffCode:     "C-001",
		StaffName:     "Dana Field",
		RegularHours:  decimal.NewFromInt(40),
		OvertimeHours: decimal.NewFromInt(2),
		TotalHours:    decimal.NewFromInt(42),
		PayRate:       decimal.NewFromFloat(18.5),
		GrossPay:      decimal.NewFromFloat(795.50),
	}

	cases := []struct {
		field *PayrollMappingField
		want  string
	}{
		{&PayrollMappingField{SourceField: src(SourceFieldStaffCode)}, "C-001"},
		{&PayrollMappingField{SourceField: src(SourceFieldStaffName)}, "Dana Field"},
		{&PayrollMappingField{SourceField: src(SourceFieldPeriodStart)}, "08/24/2026"},
		{&PayrollMappingField{SourceField: src(SourceFieldPeriodEnd)}, "08/30/2026"},
		{&PayrollMappingField{SourceField: src(SourceFieldRegularHours)}, "40.00"},
		{&PayrollMappingField{SourceField: src(SourceFieldOvertimeHours)}, "2.00"},
		{&PayrollMappingField{SourceField: src(SourceFieldTotalHours)}, "42.00"},
		{&PayrollMappingField{SourceField: src(SourceFieldPayRate)}, "18.50"},
		{&PayrollMappingField{SourceField: src(SourceFieldGrossPay)}, "795.50"},
		{&PayrollMappingField{StaticValue: static("ACME")}, "ACME"},
		{&PayrollMappingField{}, ""},
	}
	for i, tc := range cases {
		if got := renderCell(tc.field, row, run, mapping); got != tc.want {
			t.Fatalf("case %d: got %q, want %q", i, got, tc.want)
		}
	}
}

func TestRenderCsvQuoteAll(t *testing.T) {
	mapping := &PayrollMapping{Delimiter: ";", QuoteAll: true}
	out, err := renderCsv([][]string{
		{"Name", "Note"},
		{"Dana", `says "hi"`},
	}, mapping)
	if err != nil {
		t.Fatalf("renderCsv: %v", err)
	}
	got := string(out)
	want := "\"Name\";\"Note\"\n\"Dana\";\"says \"\"hi\"\"\"\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderCsvDelimiter(t *testing.T) {
	mapping := &PayrollMapping{Delimiter: "\t"}
	out, err := renderCsv([][]string{{"a", "b"}}, mapping)
	if err != nil {
		t.Fatalf("renderCsv: %v", err)
	}
	if string(out) != "a\tb\n" {
		t.Fatalf("got %q", string(out))
	}
}

func TestDecimalPlaces(t *testing.T) {
	if decimalPlaces("0.00") != 2 {
		t.Fatalf("0.00 should be 2 places")
	}
	if decimalPlaces("0.0000") != 4 {
		t.Fatalf("0.0000 should be 4 places")
	}
	if decimalPlaces("0") != 0 {
		t.Fatalf("0 should be 0 places")
	}
}

func TestGrossPayFormula(t *testing.T) {
	// 40 regular + 2 overtime at 18.50: (40 + 3) * 18.50 = 795.50
	regular := decimal.NewFromInt(40)
	overtime := decimal.NewFromInt(2)
	rate := decimal.NewFromFloat(18.5)
	gross := regular.Add(overtime.Mul(overtimeMultiplier)).Mul(rate).Round(2)
	if gross.StringFixed(2) != "795.50" {
		t.Fatalf("gross pay formula: got %s", gross.StringFixed(2))
	}
}
