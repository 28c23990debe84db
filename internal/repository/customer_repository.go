package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	bookingDomain "github.com/rechargetravels/service-booking/internal/domain/booking"
)

// CustomerModel is the GORM model for the customers table.
type CustomerModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email     string    `gorm:"not null;size:254;uniqueIndex"`
	Name      string    `gorm:"size:200"`
	Phone     string    `gorm:"size:50"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName sets the table name.
func (CustomerModel) TableName() string { return "customers" }

// GormCustomerResolver maps booking contacts to customer identities, creating
// a customer on first sight of an e-mail address.
type GormCustomerResolver struct {
	db *gorm.DB
}

// NewGormCustomerResolver creates a new GormCustomerResolver.
func NewGormCustomerResolver(db *gorm.DB) *GormCustomerResolver {
	return &GormCustomerResolver{db: db}
}

// Resolve returns the customer ID for the contact's e-mail.
func (r *GormCustomerResolver) Resolve(ctx context.Context, contact bookingDomain.Contact) (uuid.UUID, error) {
	email := strings.ToLower(strings.TrimSpace(contact.Email))
	if email == "" {
		return uuid.Nil, errors.New("contact has no email")
	}

	id, err := r.findByEmail(ctx, email)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, err
	}

	now := time.Now().UTC()
	model := CustomerModel{
		ID:        uuid.New(),
		Email:     email,
		Name:      contact.Name,
		Phone:     contact.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := conn(ctx, r.db).Create(&model).Error; err != nil {
		if isDuplicateKey(err) {
			return r.findByEmail(ctx, email)
		}
		return uuid.Nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return model.ID, nil
}

func (r *GormCustomerResolver) findByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	var model CustomerModel
	if err := conn(ctx, r.db).Where("email = ?", email).First(&model).Error; err != nil {
		return uuid.Nil, err
	}
	return model.ID, nil
}
