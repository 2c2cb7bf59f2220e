package models

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gleamops/fieldops_backend/config"
	"github.com/gleamops/fieldops_backend/problem"
	"github.com/gleamops/fieldops_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Export artifact formats.
const (
	ArtifactFormatCSV  = "csv"
	ArtifactFormatXLSX = "xlsx"
)

var overtimeMultiplier = decimal.NewFromFloat(1.5)

// PayrollRun captures one export attempt. PREVIEW runs are recomputable;
// FINALIZED runs are immutable and carry the generated artifact.
type PayrollRun struct {
	ID                string           `gorm:"primaryKey;size:36" json:"id"`
	TenantId          string           `gorm:"index;size:36;not null" json:"tenant_id"`
	MappingId         string           `gorm:"index;size:36;not null" json:"mapping_id"`
	Mapping           *PayrollMapping  `gorm:"foreignKey:MappingId" json:"mapping,omitempty"`
	PeriodStart       string           `gorm:"size:10;not null" json:"period_start"`
	PeriodEnd         string           `gorm:"size:10;not null" json:"period_end"`
	Status            string           `gorm:"size:20;not null;default:PREVIEW" json:"status"`
	ArtifactFormat    string           `gorm:"size:10;not null;default:csv" json:"artifact_format"`
	RowCount          int              `json:"row_count"`
	TotalGross        decimal.Decimal  `gorm:"type:decimal(12,2)" json:"total_gross"`
	ArtifactName      *string          `gorm:"size:120" json:"artifact_name"`
	ArtifactChecksum  *string          `gorm:"size:64" json:"artifact_checksum"`
	ArtifactData      []byte           `gorm:"type:longblob" json:"-"`
	FinalizedAt       *time.Time       `json:"finalized_at"`
	FinalizedByUserId *string          `gorm:"size:36" json:"finalized_by_user_id"`
	Rows              []*PayrollRunRow `gorm:"foreignKey:RunId" json:"rows,omitempty"`
	CreatedAt         time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *PayrollRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// PayrollRunRow is the aggregate for one staff member over the run's period.
type PayrollRunRow struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id"`
	TenantId      string          `gorm:"index;size:36;not null" json:"tenant_id"`
	RunId         string          `gorm:"index;size:36;not null" json:"run_id"`
	StaffId       string          `gorm:"size:36;not null" json:"staff_id"`
	StaffCode     string          `gorm:"size:30" json:"staff_code"`
	StaffName     string          `gorm:"size:100" json:"staff_name"`
	RegularHours  decimal.Decimal `gorm:"type:decimal(8,2)" json:"regular_hours"`
	OvertimeHours decimal.Decimal `gorm:"type:decimal(8,2)" json:"overtime_hours"`
	BreakHours    decimal.Decimal `gorm:"type:decimal(8,2)" json:"break_hours"`
	TotalHours    decimal.Decimal `gorm:"type:decimal(8,2)" json:"total_hours"`
	PayRate       decimal.Decimal `gorm:"type:decimal(8,2)" json:"pay_rate"`
	GrossPay      decimal.Decimal `gorm:"type:decimal(12,2)" json:"gross_pay"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (r *PayrollRunRow) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// buildPayrollRows aggregates approved timesheets for the period into one row
// per staff member. Gross pay is (regular + 1.5 * overtime) * pay rate; staff
// without a pay rate export zero gross rather than failing the run.
func buildPayrollRows(ctx context.Context, tenantId, periodStart, periodEnd string) ([]*PayrollRunRow, error) {
	sheets, err := listApprovedTimesheets(ctx, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}

	byStaff := map[string]*PayrollRunRow{}
	for _, sheet := range sheets {
		row, ok := byStaff[sheet.StaffId]
		if !ok {
			row = &PayrollRunRow{TenantId: tenantId, StaffId: sheet.StaffId}
			if sheet.Staff != nil {
				row.StaffCode = sheet.Staff.StaffCode
				row.StaffName = sheet.Staff.FullName
				if sheet.Staff.PayRate != nil {
					row.PayRate = *sheet.Staff.PayRate
				}
			}
			byStaff[sheet.StaffId] = row
		}
		row.RegularHours = row.RegularHours.Add(sheet.RegularHours)
		row.OvertimeHours = row.OvertimeHours.Add(sheet.OvertimeHours)
		row.BreakHours = row.BreakHours.Add(sheet.BreakHours)
	}

	rows := make([]*PayrollRunRow, 0, len(byStaff))
	for _, row := range byStaff {
		row.TotalHours = row.RegularHours.Add(row.OvertimeHours)
		row.GrossPay = row.RegularHours.
			Add(row.OvertimeHours.Mul(overtimeMultiplier)).
			Mul(row.PayRate).
			Round(2)
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].StaffName != rows[j].StaffName {
			return rows[i].StaffName < rows[j].StaffName
		}
		return rows[i].StaffId < rows[j].StaffId
	})
	return rows, nil
}

func decimalPlaces(format string) int32 {
	if idx := strings.LastIndex(format, "."); idx >= 0 {
		return int32(len(format) - idx - 1)
	}
	return 0
}

func formatPeriodDate(raw string, layout string) string {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return raw
	}
	return t.Format(layout)
}

// renderCell resolves one mapping field against one row. Static values win
// when no source field is set; the source enumeration is validated at
// mapping-write time, so an unknown name here renders empty.
func renderCell(field *PayrollMappingField, row *PayrollRunRow, run *PayrollRun, mapping *PayrollMapping) string {
	if field.SourceField == nil {
		if field.StaticValue != nil {
			return *field.StaticValue
		}
		return ""
	}
	places := decimalPlaces(mapping.DecimalFormat)
	switch *field.SourceField {
	case SourceFieldStaffCode:
		return row.StaffCode
	case SourceFieldStaffName:
		return row.StaffName
	case SourceFieldPeriodStart:
		return formatPeriodDate(run.PeriodStart, mapping.DateFormat)
	case SourceFieldPeriodEnd:
		return formatPeriodDate(run.PeriodEnd, mapping.DateFormat)
	case SourceFieldRegularHours:
		return row.RegularHours.StringFixed(places)
	case SourceFieldOvertimeHours:
		return row.OvertimeHours.StringFixed(places)
	case SourceFieldBreakHours:
		return row.BreakHours.StringFixed(places)
	case SourceFieldTotalHours:
		return row.TotalHours.StringFixed(places)
	case SourceFieldPayRate:
		return row.PayRate.StringFixed(places)
	case SourceFieldGrossPay:
		return row.GrossPay.StringFixed(places)
	}
	return ""
}

type NewPayrollRun struct {
	MappingId      string `json:"mapping_id" binding:"required"`
	PeriodStart    string `json:"period_start" binding:"required"`
	PeriodEnd      string `json:"period_end" binding:"required"`
	ArtifactFormat string `json:"artifact_format"`
}

// PreviewPayrollExport builds a PREVIEW run for a mapping and period. The
// mapping must have at least one enabled field; a run can never start from an
// empty column set.
func PreviewPayrollExport(ctx context.Context, input *NewPayrollRun) (*PayrollRun, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, problem.Unauthenticated()
	}

	if _, err := time.Parse("2006-01-02", input.PeriodStart); err != nil {
		return nil, problem.Validation("period_start must be an ISO date (YYYY-MM-DD)")
	}
	if _, err := time.Parse("2006-01-02", input.PeriodEnd); err != nil {
		return nil, problem.Validation("period_end must be an ISO date (YYYY-MM-DD)")
	}
	if input.PeriodEnd < input.PeriodStart {
		return nil, problem.Validation("period_end must not precede period_start")
	}
	format := input.ArtifactFormat
	if format == "" {
		format = ArtifactFormatCSV
	}
	if format != ArtifactFormatCSV && format != ArtifactFormatXLSX {
		return nil, problem.Validation("artifact_format must be csv or xlsx")
	}

	mapping, err := utils.FetchModel[PayrollMapping](ctx, tenantId, input.MappingId)
	if err != nil {
		return nil, problem.NotFound("payroll mapping not found")
	}
	if mapping.ArchivedAt != nil || !mapping.IsActive {
		return nil, problem.Conflict("mapping is not active")
	}
	fields, err := enabledMappingFields(ctx, mapping.ID)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, problem.Conflict("mapping has no enabled fields; enable at least one field before exporting")
	}

	rows, err := buildPayrollRows(ctx, tenantId, input.PeriodStart, input.PeriodEnd)
	if err != nil {
		return nil, err
	}

	run := PayrollRun{
		TenantId:       tenantId,
		MappingId:      mapping.ID,
		PeriodStart:    input.PeriodStart,
		PeriodEnd:      input.PeriodEnd,
		Status:         RunStatusPreview,
		ArtifactFormat: format,
		RowCount:       len(rows),
	}
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.GrossPay)
	}
	run.TotalGross = total
	run.Rows = rows

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// generateArtifact renders the run's rows through the mapping's enabled
// fields into the requested format.
func generateArtifact(run *PayrollRun, mapping *PayrollMapping, fields []*PayrollMappingField, rows []*PayrollRunRow) ([]byte, error) {
	header := make([]string, 0, len(fields))
	for _, f := range fields {
		header = append(header, f.OutputColumnName)
	}
	records := make([][]string, 0, len(rows)+1)
	records = append(records, header)
	for _, row := range rows {
		record := make([]string, 0, len(fields))
		for _, f := range fields {
			record = append(record, renderCell(f, row, run, mapping))
		}
		records = append(records, record)
	}

	if run.ArtifactFormat == ArtifactFormatXLSX {
		return renderXlsx(records)
	}
	return renderCsv(records, mapping)
}

func renderCsv(records [][]string, mapping *PayrollMapping) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if mapping.Delimiter != "" {
		w.Comma = rune(mapping.Delimiter[0])
	}
	// encoding/csv quotes only when needed; QuoteAll forces quoting by
	// embedding is handled at the writer level below
	for _, record := range records {
		if mapping.QuoteAll {
			quoted := make([]string, len(record))
			for i, cell := range record {
				quoted[i] = "\"" + strings.ReplaceAll(cell, "\"", "\"\"") + "\""
			}
			if _, err := buf.WriteString(strings.Join(quoted, string(w.Comma)) + "\n"); err != nil {
				return nil, err
			}
			continue
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderXlsx(records [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, record := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		row := make([]interface{}, len(record))
		for j, v := range record {
			row[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FinalizePayrollRun transitions a PREVIEW run to FINALIZED, generating and
// storing the artifact with its checksum. Finalization is serialized per
// tenant by a distributed lock so two concurrent finalizes cannot interleave.
func FinalizePayrollRun(ctx context.Context, runId string) (*PayrollRun, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, problem.Unauthenticated()
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	release, err := utils.TenantLock(ctx, tenantId, "PayrollFinalize", "models", "FinalizePayrollRun")
	if err != nil {
		return nil, err
	}
	defer release()

	db := config.GetDB()
	var finalized *PayrollRun
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var run PayrollRun
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", runId).
			First(&run).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return problem.NotFound("payroll run not found")
			}
			return err
		}
		if run.Status != RunStatusPreview {
			return problem.Conflict("payroll run is already finalized")
		}

		var mapping PayrollMapping
		if err := tx.Where("id = ?", run.MappingId).First(&mapping).Error; err != nil {
			return err
		}
		var fields []*PayrollMappingField
		err = tx.
			Where("mapping_id = ? AND archived_at IS NULL AND is_enabled = ?", run.MappingId, true).
			Order("sort_order ASC, output_column_name ASC").
			Find(&fields).Error
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return problem.Conflict("mapping has no enabled fields; enable at least one field before exporting")
		}
		var rows []*PayrollRunRow
		if err := tx.Where("run_id = ?", run.ID).Order("staff_name ASC, staff_id ASC").Find(&rows).Error; err != nil {
			return err
		}

		data, err := generateArtifact(&run, &mapping, fields, rows)
		if err != nil {
			return problem.SystemFailure(err)
		}
		sum := sha256.Sum256(data)
		checksum := hex.EncodeToString(sum[:])
		name := fmt.Sprintf("payroll_%s_%s_%s.%s", mapping.TemplateName, run.PeriodStart, run.PeriodEnd, run.ArtifactFormat)
		name = strings.ReplaceAll(name, " ", "_")
		now := time.Now().UTC()

		changes := map[string]interface{}{
			"status":               RunStatusFinalized,
			"artifact_name":        name,
			"artifact_checksum":    checksum,
			"artifact_data":        data,
			"finalized_at":         &now,
			"finalized_by_user_id": utils.NilIfEmpty(userId),
		}
		if err := tx.Model(&PayrollRun{}).Where("id = ?", run.ID).Updates(changes).Error; err != nil {
			return err
		}
		run.Status = RunStatusFinalized
		run.ArtifactName = &name
		run.ArtifactChecksum = &checksum
		run.ArtifactData = data
		run.FinalizedAt = &now
		run.FinalizedByUserId = utils.NilIfEmpty(userId)
		finalized = &run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return finalized, nil
}

// PayrollArtifact is the downloadable result of a finalized run.
type PayrollArtifact struct {
	Name        string
	ContentType string
	Checksum    string
	Data        []byte
}

func GetPayrollRunArtifact(ctx context.Context, runId string) (*PayrollArtifact, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, problem.Unauthenticated()
	}
	run, err := utils.FetchModel[PayrollRun](ctx, tenantId, runId)
	if err != nil {
		return nil, problem.NotFound("payroll run not found")
	}
	if run.Status != RunStatusFinalized || run.ArtifactName == nil {
		return nil, problem.Conflict("payroll run has no artifact; finalize it first")
	}
	contentType := "text/csv"
	if run.ArtifactFormat == ArtifactFormatXLSX {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return &PayrollArtifact{
		Name:        *run.ArtifactName,
		ContentType: contentType,
		Checksum:    utils.DereferencePtr(run.ArtifactChecksum),
		Data:        run.ArtifactData,
	}, nil
}

type PayrollRunSummary struct {
	ID          string  `json:"id"`
	MappingId   string  `json:"mapping_id"`
	PeriodStart string  `json:"period_start"`
	PeriodEnd   string  `json:"period_end"`
	Status      string  `json:"status"`
	RowCount    int     `json:"row_count"`
	TotalGross  string  `json:"total_gross"`
	FinalizedAt *string `json:"finalized_at"`
}

func ListRecentPayrollRuns(ctx context.Context, limit int) ([]*PayrollRunSummary, error) {
	db := config.GetDB()
	var runs []*PayrollRun
	err := db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	summaries := make([]*PayrollRunSummary, 0, len(runs))
	for _, run := range runs {
		s := &PayrollRunSummary{
			ID:          run.ID,
			MappingId:   run.MappingId,
			PeriodStart: run.PeriodStart,
			PeriodEnd:   run.PeriodEnd,
			Status:      run.Status,
			RowCount:    run.RowCount,
			TotalGross:  run.TotalGross.StringFixed(2),
		}
		if run.FinalizedAt != nil {
			ts := run.FinalizedAt.UTC().Format(time.RFC3339)
			s.FinalizedAt = &ts
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}
