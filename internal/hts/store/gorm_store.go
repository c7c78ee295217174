package store

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/OpenNSW/duty/internal/hts"
	"github.com/OpenNSW/duty/utils"
)

const (
	defaultTable      = "hts_codes"
	defaultCodeColumn = "hts_number"
	upsertBatchSize   = 1000
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// GormStore is the gorm backed tariff record store. Reads go through RowToRecord so
// tables created under older column conventions stay readable.
type GormStore struct {
	db         *gorm.DB
	table      string
	codeColumn string
}

// Option configures a GormStore
type Option func(*GormStore)

// WithTable reads from a table other than hts_codes
func WithTable(name string) Option {
	return func(s *GormStore) {
		s.table = name
	}
}

// WithCodeColumn sets the column holding the tariff code, for example hts_code on
// tables created before hts_number was introduced
func WithCodeColumn(name string) Option {
	return func(s *GormStore) {
		s.codeColumn = name
	}
}

// NewGormStore creates a store on db
func NewGormStore(db *gorm.DB, opts ...Option) (*GormStore, error) {
	s := &GormStore{
		db:         db,
		table:      defaultTable,
		codeColumn: defaultCodeColumn,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !identifier.MatchString(s.table) {
		return nil, fmt.Errorf("invalid table name %q", s.table)
	}
	if !identifier.MatchString(s.codeColumn) {
		return nil, fmt.Errorf("invalid code column %q", s.codeColumn)
	}
	return s, nil
}

// AutoMigrate creates or updates the tariff record table
func (s *GormStore) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Table(s.table).AutoMigrate(&TariffRecordRow{}); err != nil {
		return fmt.Errorf("failed to migrate %s: %w", s.table, err)
	}
	return nil
}

// FindByCode returns the record whose code equals code, or nil when there is none
func (s *GormStore) FindByCode(ctx context.Context, code string) (*hts.TariffRecord, error) {
	var rows []map[string]any
	result := s.db.WithContext(ctx).
		Table(s.table).
		Where(clause.Eq{Column: clause.Column{Name: s.codeColumn}, Value: code}).
		Limit(1).
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find tariff record %s: %w", code, result.Error)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	rec, err := RowToRecord(rows[0])
	if err != nil {
		return nil, fmt.Errorf("tariff record %s: %w", code, err)
	}
	return &rec, nil
}

// FindByPrefix returns the records whose code starts with prefix, ordered by code.
// prefix is matched literally and must not contain LIKE wildcards.
func (s *GormStore) FindByPrefix(ctx context.Context, prefix string) ([]hts.TariffRecord, error) {
	if strings.ContainsAny(prefix, "%_") {
		return nil, fmt.Errorf("invalid code prefix %q", prefix)
	}

	var rows []map[string]any
	result := s.db.WithContext(ctx).
		Table(s.table).
		Where(clause.Like{Column: clause.Column{Name: s.codeColumn}, Value: prefix + "%"}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: s.codeColumn}}).
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find tariff records under %s: %w", prefix, result.Error)
	}
	return s.toRecords(ctx, rows), nil
}

// List retrieves tariff records with optional code prefix filtering and pagination
func (s *GormStore) List(ctx context.Context, filter TariffRecordFilter) (*TariffRecordListResult, error) {
	if filter.CodeStartsWith != nil && strings.ContainsAny(*filter.CodeStartsWith, "%_") {
		return nil, fmt.Errorf("invalid code prefix %q", *filter.CodeStartsWith)
	}

	var totalCount int64
	if err := s.filtered(ctx, filter).Count(&totalCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count tariff records: %w", err)
	}

	finalOffset, finalLimit := utils.GetPaginationParams(filter.Offset, filter.Limit)

	var rows []map[string]any
	result := s.filtered(ctx, filter).
		Order(clause.OrderByColumn{Column: clause.Column{Name: s.codeColumn}}).
		Offset(finalOffset).
		Limit(finalLimit).
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to retrieve tariff records: %w", result.Error)
	}

	return &TariffRecordListResult{
		TotalCount: totalCount,
		Records:    s.toRecords(ctx, rows),
		Offset:     finalOffset,
		Limit:      finalLimit,
	}, nil
}

// UpsertBatch inserts rows, replacing the rate columns of rows whose code already exists
func (s *GormStore) UpsertBatch(ctx context.Context, rows []TariffRecordRow) error {
	if len(rows) == 0 {
		return nil
	}

	result := s.db.WithContext(ctx).
		Table(s.table).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: defaultCodeColumn}},
			DoUpdates: clause.AssignmentColumns([]string{
				"indent",
				"description",
				"superior",
				"general_rate_of_duty",
				"special_rate_of_duty",
				"column_2_rate_of_duty",
				"unit_of_quantity",
				"additional_duties",
				"quota_quantity",
				"footnotes",
				"updated_at",
			}),
		}).
		CreateInBatches(rows, upsertBatchSize)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert %d tariff records: %w", len(rows), result.Error)
	}
	return nil
}

func (s *GormStore) filtered(ctx context.Context, filter TariffRecordFilter) *gorm.DB {
	query := s.db.WithContext(ctx).Table(s.table)
	if filter.CodeStartsWith != nil && *filter.CodeStartsWith != "" {
		query = query.Where(clause.Like{Column: clause.Column{Name: s.codeColumn}, Value: *filter.CodeStartsWith + "%"})
	}
	return query
}

func (s *GormStore) toRecords(ctx context.Context, rows []map[string]any) []hts.TariffRecord {
	records := make([]hts.TariffRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := RowToRecord(row)
		if err != nil {
			slog.WarnContext(ctx, "skipping tariff row without a code", "table", s.table)
			continue
		}
		records = append(records, rec)
	}
	return records
}
