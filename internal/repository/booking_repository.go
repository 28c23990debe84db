package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	bookingDomain "github.com/rechargetravels/service-booking/internal/domain/booking"
	"github.com/rechargetravels/service-booking/pkg/domain"
)

// BookingModel is the GORM model for the bookings table. Each domain is a
// logical partition: references are unique per (domain, reference) and every
// reference lookup is scoped by domain.
type BookingModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Domain       string          `gorm:"not null;size:32;uniqueIndex:idx_bookings_domain_reference,priority:1"`
	Reference    string          `gorm:"not null;size:32;uniqueIndex:idx_bookings_domain_reference,priority:2"`
	Status       string          `gorm:"not null;size:20;index"`
	CustomerID   *uuid.UUID      `gorm:"type:uuid;index"`
	ContactName  string          `gorm:"not null;size:200"`
	ContactEmail string          `gorm:"not null;size:254;index"`
	ContactPhone string          `gorm:"not null;size:50"`
	Payload      datatypes.JSON  `gorm:"type:jsonb;not null"`
	AmountDue    decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Currency     string          `gorm:"not null;size:3"`
	Notes        string          `gorm:"size:1000"`
	ConfirmedAt  *time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CancelledAt  *time.Time
	CancelReason string    `gorm:"size:500"`
	Version      int64     `gorm:"not null;default:1"`
	CreatedAt    time.Time `gorm:"not null;index"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByReference retrieves a booking by reference within its domain.
func (r *GormBookingRepository) FindByReference(ctx context.Context, d bookingDomain.Domain, reference string) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := conn(ctx, r.db).
		Where("domain = ? AND reference = ?", string(d), reference).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", reference)
		}
		return nil, fmt.Errorf("failed to find booking by reference: %w", err)
	}
	return toDomainBooking(&model)
}

// List retrieves bookings matching the filter, newest first.
func (r *GormBookingRepository) List(ctx context.Context, f bookingDomain.ListFilter) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := applyBookingFilter(conn(ctx, r.db).Model(&BookingModel{}), f).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	if err := applyBookingFilter(conn(ctx, r.db), f).
		Order("created_at DESC").
		Offset(offset(f.Page, f.Limit)).
		Limit(f.Limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bk, err := toDomainBooking(&models[i])
		if err != nil {
			return nil, 0, err
		}
		bookings[i] = bk
	}
	return bookings, total, nil
}

// likeEscaper makes user text match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func applyBookingFilter(q *gorm.DB, f bookingDomain.ListFilter) *gorm.DB {
	if f.Domain != nil {
		q = q.Where("domain = ?", string(*f.Domain))
	}
	if f.Status != nil {
		q = q.Where("status = ?", string(*f.Status))
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("created_at < ?", f.To.UTC())
	}
	if text := strings.TrimSpace(f.Query); text != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(text)) + "%"
		q = q.Where(
			`(LOWER(reference) LIKE ? ESCAPE '\' OR LOWER(contact_name) LIKE ? ESCAPE '\' OR LOWER(contact_email) LIKE ? ESCAPE '\'`+
				` OR LOWER(contact_phone) LIKE ? ESCAPE '\' OR LOWER(CAST(payload AS TEXT)) LIKE ? ESCAPE '\')`,
			like, like, like, like, like,
		)
	}
	return q
}

// CountByDomainAndStatus returns booking counts keyed by domain then status.
func (r *GormBookingRepository) CountByDomainAndStatus(ctx context.Context) (map[bookingDomain.Domain]map[bookingDomain.BookingStatus]int64, error) {
	type row struct {
		Domain string
		Status string
		Count  int64
	}
	var rows []row
	if err := conn(ctx, r.db).Model(&BookingModel{}).
		Select("domain, status, count(*) as count").
		Group("domain, status").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count bookings: %w", err)
	}

	counts := make(map[bookingDomain.Domain]map[bookingDomain.BookingStatus]int64)
	for _, rw := range rows {
		d := bookingDomain.Domain(rw.Domain)
		if counts[d] == nil {
			counts[d] = make(map[bookingDomain.BookingStatus]int64)
		}
		counts[d][bookingDomain.BookingStatus(rw.Status)] = rw.Count
	}
	return counts, nil
}

// Save persists a new booking.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	if err := conn(ctx, r.db).Create(model).Error; err != nil {
		if isDuplicateKey(err) {
			return bookingDomain.ErrDuplicateReference
		}
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

// Update persists changes to an existing booking with optimistic locking.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	// IncrementVersion was called before Update, so the row still carries version-1.
	expectedVersion := bk.Version() - 1
	result := conn(ctx, r.db).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":        model.Status,
			"customer_id":   model.CustomerID,
			"contact_name":  model.ContactName,
			"contact_email": model.ContactEmail,
			"contact_phone": model.ContactPhone,
			"payload":       model.Payload,
			"notes":         model.Notes,
			"confirmed_at":  model.ConfirmedAt,
			"started_at":    model.StartedAt,
			"completed_at":  model.CompletedAt,
			"cancelled_at":  model.CancelledAt,
			"cancel_reason": model.CancelReason,
			"version":       model.Version,
			"updated_at":    model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction")
	}
	return nil
}

// Delete physically removes a booking.
func (r *GormBookingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := conn(ctx, r.db).Where("id = ?", id).Delete(&BookingModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete booking: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Booking", id.String())
	}
	return nil
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) (*BookingModel, error) {
	payload, err := json.Marshal(bk.Payload())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	contact := bk.Contact()

	return &BookingModel{
		ID:           bk.ID(),
		Domain:       string(bk.Domain()),
		Reference:    bk.Reference(),
		Status:       string(bk.Status()),
		CustomerID:   bk.CustomerID(),
		ContactName:  contact.Name,
		ContactEmail: contact.Email,
		ContactPhone: contact.Phone,
		Payload:      datatypes.JSON(payload),
		AmountDue:    bk.AmountDue(),
		Currency:     bk.Currency(),
		Notes:        bk.Notes(),
		ConfirmedAt:  bk.ConfirmedAt(),
		StartedAt:    bk.StartedAt(),
		CompletedAt:  bk.CompletedAt(),
		CancelledAt:  bk.CancelledAt(),
		CancelReason: bk.CancelReason(),
		Version:      bk.Version(),
		CreatedAt:    bk.CreatedAt(),
		UpdatedAt:    bk.UpdatedAt(),
	}, nil
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	payload := bookingDomain.Payload{}
	if len(m.Payload) > 0 {
		if err := json.Unmarshal(m.Payload, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	d, err := bookingDomain.ParseDomain(m.Domain)
	if err != nil {
		return nil, err
	}
	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, err
	}

	return bookingDomain.ReconstructBooking(
		m.ID,
		d,
		m.Reference,
		status,
		m.CustomerID,
		bookingDomain.Contact{Name: m.ContactName, Email: m.ContactEmail, Phone: m.ContactPhone},
		payload,
		m.AmountDue,
		m.Currency,
		m.Notes,
		m.ConfirmedAt,
		m.StartedAt,
		m.CompletedAt,
		m.CancelledAt,
		m.CancelReason,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}
