package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/OpenNSW/duty/internal/hts"
)

// BaseModel defines the common identity and timestamp columns of stored rows.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;column:id;not null;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"type:timestamptz;column:created_at;not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"type:timestamptz;column:updated_at;not null" json:"updatedAt"`
}

// BeforeCreate is a GORM hook that is triggered before a new record is created.
func (base *BaseModel) BeforeCreate(tx *gorm.DB) (err error) {
	if base.ID == uuid.Nil {
		base.ID, err = uuid.NewRandom()
		if err != nil {
			return
		}
	}
	base.CreatedAt = time.Now().UTC()
	base.UpdatedAt = time.Now().UTC()
	return
}

// BeforeUpdate is a GORM hook that is triggered before an existing record is updated.
func (base *BaseModel) BeforeUpdate(tx *gorm.DB) (err error) {
	base.UpdatedAt = time.Now().UTC()
	return
}

// TariffRecordRow is one line of the harmonized tariff schedule as stored in the database.
type TariffRecordRow struct {
	BaseModel
	HTSNumber        string          `gorm:"type:varchar(20);column:hts_number;not null;uniqueIndex" json:"htsNumber"` // Canonical code CCHH.SS.IISS
	Indent           int             `gorm:"column:indent;not null;default:0" json:"indent"`                          // Depth in the schedule outline
	Description      string          `gorm:"type:text;column:description" json:"description"`
	Superior         bool            `gorm:"column:superior;not null;default:false" json:"superior"` // Heading-only line without rates
	GeneralRate      *string         `gorm:"type:text;column:general_rate_of_duty" json:"generalRate"`
	SpecialRate      *string         `gorm:"type:text;column:special_rate_of_duty" json:"specialRate"`
	Column2Rate      *string         `gorm:"type:text;column:column_2_rate_of_duty" json:"column2Rate"`
	UnitOfQuantity   []string        `gorm:"type:text;column:unit_of_quantity;serializer:json" json:"unitOfQuantity"`
	AdditionalDuties *string         `gorm:"type:text;column:additional_duties" json:"additionalDuties"`
	QuotaQuantity    *string         `gorm:"type:text;column:quota_quantity" json:"quotaQuantity"`
	Footnotes        json.RawMessage `gorm:"type:jsonb;column:footnotes" json:"footnotes,omitempty"`
}

func (r *TariffRecordRow) TableName() string {
	return defaultTable
}

// TariffRecordFilter will be used when querying as batch
type TariffRecordFilter struct {
	CodeStartsWith *string `json:"hsCodeStartsWith,omitempty"`
	Offset         *int    `json:"offset,omitempty"`
	Limit          *int    `json:"limit,omitempty"`
}

// TariffRecordListResult represents the result of querying tariff records with pagination
type TariffRecordListResult struct {
	TotalCount int64              `json:"totalCount"`
	Records    []hts.TariffRecord `json:"hsCodes"`
	Offset     int                `json:"offset"`
	Limit      int                `json:"limit"`
}
