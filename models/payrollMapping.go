package models

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/gleamops/fieldops_backend/config"
	"github.com/gleamops/fieldops_backend/problem"
	"github.com/gleamops/fieldops_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PayrollMapping is an export template. Version is an optimistic-concurrency
// token: updates must present the version they read.
type PayrollMapping struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	TenantId      string     `gorm:"index;size:36;not null" json:"tenant_id"`
	TemplateName  string     `gorm:"size:100;not null" json:"template_name"`
	ProviderCode  *string    `gorm:"size:30" json:"provider_code"`
	Delimiter     string     `gorm:"size:1;not null;default:','" json:"delimiter"`
	QuoteAll      bool       `json:"quote_all"`
	DecimalFormat string     `gorm:"size:20;not null;default:'0.00'" json:"decimal_format"`
	DateFormat    string     `gorm:"size:20;not null;default:'2006-01-02'" json:"date_format"`
	IsDefault     bool       `json:"is_default"`
	IsActive      bool       `gorm:"default:true" json:"is_active"`
	Version       int        `gorm:"not null;default:1" json:"version"`
	Fields        []*PayrollMappingField `gorm:"foreignKey:MappingId" json:"fields,omitempty"`
	ArchivedAt    *time.Time `gorm:"index" json:"archived_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (m *PayrollMapping) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// PayrollMappingField is one output column: sourced from a fixed attribute
// enumeration or a static value, never neither.
type PayrollMappingField struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	TenantId         string     `gorm:"index;size:36;not null" json:"tenant_id"`
	MappingId        string     `gorm:"index;size:36;not null" json:"mapping_id"`
	SortOrder        int        `gorm:"not null" json:"sort_order"`
	OutputColumnName string     `gorm:"size:100;not null" json:"output_column_name"`
	SourceField      *string    `gorm:"size:40" json:"source_field"`
	StaticValue      *string    `gorm:"size:200" json:"static_value"`
	IsRequired       bool       `json:"is_required"`
	IsEnabled        bool       `gorm:"default:true" json:"is_enabled"`
	ArchivedAt       *time.Time `gorm:"index" json:"archived_at"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (f *PayrollMappingField) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// Closed enumeration of payroll-relevant source fields.
const (
	SourceFieldStaffCode     = "staff_code"
	SourceFieldStaffName     = "staff_name"
	SourceFieldPeriodStart   = "period_start"
	SourceFieldPeriodEnd     = "period_end"
	SourceFieldRegularHours  = "regular_hours"
	SourceFieldOvertimeHours = "overtime_hours"
	SourceFieldBreakHours    = "break_hours"
	SourceFieldTotalHours    = "total_hours"
	SourceFieldPayRate       = "pay_rate"
	SourceFieldGrossPay      = "gross_pay"
)

var validSourceFields = map[string]bool{
	SourceFieldStaffCode:     true,
	SourceFieldStaffName:     true,
	SourceFieldPeriodStart:   true,
	SourceFieldPeriodEnd:     true,
	SourceFieldRegularHours:  true,
	SourceFieldOvertimeHours: true,
	SourceFieldBreakHours:    true,
	SourceFieldTotalHours:    true,
	SourceFieldPayRate:       true,
	SourceFieldGrossPay:      true,
}

type NewMappingField struct {
	OutputColumnName string  `json:"output_column_name" binding:"required"`
	SourceField      *string `json:"source_field"`
	StaticValue      *string `json:"static_value"`
	IsRequired       bool    `json:"is_required"`
	IsEnabled        bool    `json:"is_enabled"`
	SortOrder        int     `json:"sort_order"`
}

// ValidateMappingFieldBatch applies the field rules to a whole batch:
// unknown source_field names are rejected together, every field must carry a
// source or a static value, and at least one field must be enabled.
func ValidateMappingFieldBatch(fields []*NewMappingField) error {
	if len(fields) == 0 {
		return problem.Validation("field set must not be empty")
	}

	var unknown []string
	enabledCount := 0
	for _, f := range fields {
		if f.SourceField == nil && f.StaticValue == nil {
			return problem.Validation("field " + f.OutputColumnName + " must have a source_field or a static_value")
		}
		if f.SourceField != nil && !validSourceFields[*f.SourceField] {
			unknown = append(unknown, *f.SourceField)
		}
		if f.IsEnabled {
			enabledCount++
		}
	}
	if len(unknown) > 0 {
		unknown = utils.UniqueSlice(unknown)
		sort.Strings(unknown)
		return problem.Validation("unknown source_field values: " + strings.Join(unknown, ", "))
	}
	if enabledCount == 0 {
		return problem.Validation("field set must contain at least one enabled field")
	}
	return nil
}

// validateDelimiter rejects anything the artifact writer cannot emit: the
// column is one byte wide and the CSV writer uses a single separator byte.
func validateDelimiter(d string) error {
	if len(d) != 1 {
		return problem.Validation("delimiter must be a single character")
	}
	if d == "\"" || d == "\n" || d == "\r" {
		return problem.Validation("delimiter must not be a quote or line break")
	}
	return nil
}

type NewPayrollMapping struct {
	TemplateName  string             `json:"template_name" binding:"required"`
	ProviderCode  *string            `json:"provider_code"`
	Delimiter     string             `json:"delimiter"`
	QuoteAll      bool               `json:"quote_all"`
	DecimalFormat string             `json:"decimal_format"`
	DateFormat    string             `json:"date_format"`
	IsDefault     bool               `json:"is_default"`
	Fields        []*NewMappingField `json:"fields" binding:"required"`
}

func CreatePayrollMapping(ctx context.Context, input *NewPayrollMapping) (*PayrollMapping, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, problem.Unauthenticated()
	}

	if err := ValidateMappingFieldBatch(input.Fields); err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[PayrollMapping](ctx, tenantId, "template_name", input.TemplateName, ""); err != nil {
		return nil, problem.Validation(err.Error())
	}

	mapping := PayrollMapping{
		TenantId:     tenantId,
		TemplateName: input.TemplateName,
		ProviderCode: input.ProviderCode,
		Delimiter:    ",",
		QuoteAll:     input.QuoteAll,
		IsDefault:    input.IsDefault,
		IsActive:     true,
		Version:      1,
		DecimalFormat: "0.00",
		DateFormat:    "2006-01-02",
	}
	if input.Delimiter != "" {
		if err := validateDelimiter(input.Delimiter); err != nil {
			return nil, err
		}
		mapping.Delimiter = input.Delimiter
	}
	if input.DecimalFormat != "" {
		mapping.DecimalFormat = input.DecimalFormat
	}
	if input.DateFormat != "" {
		mapping.DateFormat = input.DateFormat
	}
	for _, f := range input.Fields {
		mapping.Fields = append(mapping.Fields, &PayrollMappingField{
			TenantId:         tenantId,
			SortOrder:        f.SortOrder,
			OutputColumnName: f.OutputColumnName,
			SourceField:      f.SourceField,
			StaticValue:      f.StaticValue,
			IsRequired:       f.IsRequired,
			IsEnabled:        f.IsEnabled,
		})
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&mapping).Error; err != nil {
		return nil, err
	}
	return &mapping, nil
}

type UpdatePayrollMappingInput struct {
	TemplateName  *string `json:"template_name"`
	ProviderCode  *string `json:"provider_code"`
	Delimiter     *string `json:"delimiter"`
	QuoteAll      *bool   `json:"quote_all"`
	DecimalFormat *string `json:"decimal_format"`
	DateFormat    *string `json:"date_format"`
	IsDefault     *bool   `json:"is_default"`
	IsActive      *bool   `json:"is_active"`
	Version       int     `json:"version" binding:"required"`
}

// UpdatePayrollMapping patches template attributes. The caller must present
// the version it read; a mismatch is a conflict, never a silent overwrite.
func UpdatePayrollMapping(ctx context.Context, id string, input *UpdatePayrollMappingInput) (*PayrollMapping, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, problem.Unauthenticated()
	}

	db := config.GetDB()
	var updated *PayrollMapping
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var mapping PayrollMapping
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND archived_at IS NULL", id).
			First(&mapping).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return problem.NotFound("payroll mapping not found")
			}
			return err
		}
		if mapping.Version != input.Version {
			return problem.Conflict("mapping was modified by another request; refresh and retry")
		}

		changes := map[string]interface{}{"version": mapping.Version + 1}
		if input.TemplateName != nil {
			changes["template_name"] = *input.TemplateName
		}
		if input.ProviderCode != nil {
			changes["provider_code"] = input.ProviderCode
		}
		if input.Delimiter != nil {
			if err := validateDelimiter(*input.Delimiter); err != nil {
				return err
			}
			changes["delimiter"] = *input.Delimiter
		}
		if input.QuoteAll != nil {
			changes["quote_all"] = *input.QuoteAll
		}
		if input.DecimalFormat != nil {
			changes["decimal_format"] = *input.DecimalFormat
		}
		if input.DateFormat != nil {
			changes["date_format"] = *input.DateFormat
		}
		if input.IsDefault != nil {
			changes["is_default"] = *input.IsDefault
		}
		if input.IsActive != nil {
			changes["is_active"] = *input.IsActive
		}
		if err := tx.Model(&PayrollMapping{}).Where("id = ?", mapping.ID).Updates(changes).Error; err != nil {
			return err
		}
		mapping.Version++
		updated = &mapping
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ReplaceMappingFields is append-then-archive: the new rows are inserted
// first, and only previously-active rows NOT in the newly inserted id set are
// archived. If insertion fails the existing field set stays intact.
func ReplaceMappingFields(ctx context.Context, mappingId string, inputs []*NewMappingField) ([]*PayrollMappingField, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, problem.Unauthenticated()
	}

	if err := ValidateMappingFieldBatch(inputs); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[PayrollMapping](ctx, tenantId, mappingId); err != nil {
		if err == utils.ErrorRecordNotFound {
			return nil, problem.NotFound("payroll mapping not found")
		}
		return nil, err
	}

	newFields := make([]*PayrollMappingField, 0, len(inputs))
	for _, f := range inputs {
		newFields = append(newFields, &PayrollMappingField{
			TenantId:         tenantId,
			MappingId:        mappingId,
			SortOrder:        f.SortOrder,
			OutputColumnName: f.OutputColumnName,
			SourceField:      f.SourceField,
			StaticValue:      f.StaticValue,
			IsRequired:       f.IsRequired,
			IsEnabled:        f.IsEnabled,
		})
	}

	db := config.GetDB()
	// phase 1: insert
	if err := db.WithContext(ctx).Create(&newFields).Error; err != nil {
		return nil, problem.SystemFailure(err)
	}

	newIds := make([]string, 0, len(newFields))
	for _, f := range newFields {
		newIds = append(newIds, f.ID)
	}

	// phase 2: archive everything active that isn't part of the new set
	now := time.Now().UTC()
	err := db.WithContext(ctx).Model(&PayrollMappingField{}).
		Where("mapping_id = ? AND archived_at IS NULL AND id NOT IN ?", mappingId, newIds).
		Update("archived_at", &now).Error
	if err != nil {
		// both generations are active; benign, but the caller must know
		return nil, problem.SystemFailure(err)
	}

	return newFields, nil
}

// ArchivePayrollMapping archives parent-first, children-second. A child
// archive failure leaves orphaned active fields under an archived parent;
// they are unreachable through active-mapping queries, so no compensating
// transaction is attempted.
func ArchivePayrollMapping(ctx context.Context, id string) (*PayrollMapping, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, problem.Unauthenticated()
	}

	mapping, err := utils.FetchModel[PayrollMapping](ctx, tenantId, id)
	if err != nil {
		return nil, problem.NotFound("payroll mapping not found")
	}
	if mapping.ArchivedAt != nil {
		return nil, problem.Conflict("mapping is already archived")
	}

	db := config.GetDB()
	now := time.Now().UTC()
	if err := db.WithContext(ctx).Model(&PayrollMapping{}).
		Where("id = ?", mapping.ID).
		Updates(map[string]interface{}{"archived_at": &now, "is_active": false}).Error; err != nil {
		return nil, problem.SystemFailure(err)
	}
	mapping.ArchivedAt = &now
	mapping.IsActive = false

	if err := db.WithContext(ctx).Model(&PayrollMappingField{}).
		Where("mapping_id = ? AND archived_at IS NULL", mapping.ID).
		Update("archived_at", &now).Error; err != nil {
		return nil, problem.SystemFailure(err)
	}

	return mapping, nil
}

func GetPayrollMapping(ctx context.Context, id string) (*PayrollMapping, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, problem.Unauthenticated()
	}
	mapping, err := utils.FetchModel[PayrollMapping](ctx, tenantId, id, "Fields")
	if err != nil {
		return nil, problem.NotFound("payroll mapping not found")
	}
	return mapping, nil
}

type PayrollMappingSummary struct {
	ID           string  `json:"id"`
	TemplateName string  `json:"template_name"`
	ProviderCode *string `json:"provider_code"`
	IsDefault    bool    `json:"is_default"`
}

func ListActivePayrollMappings(ctx context.Context, limit int) ([]*PayrollMappingSummary, error) {
	db := config.GetDB()
	var mappings []*PayrollMapping
	err := db.WithContext(ctx).
		Where("is_active = ? AND archived_at IS NULL", true).
		Order("template_name ASC").
		Limit(limit).
		Find(&mappings).Error
	if err != nil {
		return nil, err
	}
	summaries := make([]*PayrollMappingSummary, 0, len(mappings))
	for _, m := range mappings {
		summaries = append(summaries, &PayrollMappingSummary{
			ID:           m.ID,
			TemplateName: m.TemplateName,
			ProviderCode: m.ProviderCode,
			IsDefault:    m.IsDefault,
		})
	}
	return summaries, nil
}

// enabledMappingFields returns the active, enabled fields in column order.
func enabledMappingFields(ctx context.Context, mappingId string) ([]*PayrollMappingField, error) {
	db := config.GetDB()
	var fields []*PayrollMappingField
	err := db.WithContext(ctx).
		Where("mapping_id = ? AND archived_at IS NULL AND is_enabled = ?", mappingId, true).
		Order("sort_order ASC, output_column_name ASC").
		Find(&fields).Error
	if err != nil {
		return nil, err
	}
	return fields, nil
}
