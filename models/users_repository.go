package models

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type UsersRepository struct {
	db *gorm.DB
}

func NewUsersRepository(db *gorm.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

func (r *UsersRepository) CreateUser(ctx context.Context, user *User) error {
	user.Email = NormalizeEmail(user.Email)
	var clash int64
	if err := r.db.WithContext(ctx).Model(&User{}).Where("email = ?", user.Email).Count(&clash).Error; err != nil {
		return err
	}
	if clash > 0 {
		return Rule("email", "email is already registered")
	}
	return r.db.WithContext(ctx).Omit("Addresses").Create(user).Error
}

func (r *UsersRepository) GetUser(ctx context.Context, id uint) (*User, error) {
	var user User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &user, nil
}

func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	if err := r.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &user, nil
}

// --- Addresses ---

func (r *UsersRepository) ListAddresses(ctx context.Context, userID uint) ([]UserAddress, error) {
	var addresses []UserAddress
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC, id ASC").
		Find(&addresses).Error; err != nil {
		return nil, err
	}
	return addresses, nil
}

// GetAddress returns ErrForbidden when the address belongs to another user.
func (r *UsersRepository) GetAddress(ctx context.Context, userID, id uint) (*UserAddress, error) {
	var address UserAddress
	if err := r.db.WithContext(ctx).First(&address, id).Error; err != nil {
		return nil, notFound(err, ErrAddressNotFound)
	}
	if address.UserID != userID {
		return nil, ErrForbidden
	}
	return &address, nil
}

// SaveAddress creates or updates an address. The user's first address, or
// one flagged default, becomes the only default.
func (r *UsersRepository) SaveAddress(ctx context.Context, address *UserAddress) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var others int64
		if err := tx.Model(&UserAddress{}).
			Where("user_id = ? AND id <> ?", address.UserID, address.ID).
			Count(&others).Error; err != nil {
			return err
		}
		if others == 0 {
			address.IsDefault = true
		}
		if address.IsDefault {
			if err := tx.Model(&UserAddress{}).
				Where("user_id = ? AND id <> ?", address.UserID, address.ID).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}
		return tx.Save(address).Error
	})
}

func (r *UsersRepository) DeleteAddress(ctx context.Context, userID, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var address UserAddress
		if err := tx.First(&address, id).Error; err != nil {
			return notFound(err, ErrAddressNotFound)
		}
		if address.UserID != userID {
			return ErrForbidden
		}
		if err := tx.Delete(&address).Error; err != nil {
			return err
		}
		if !address.IsDefault {
			return nil
		}
		var next UserAddress
		err := tx.Where("user_id = ?", userID).Order("id ASC").First(&next).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Model(&next).Update("is_default", true).Error
	})
}
