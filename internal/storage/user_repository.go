package storage

import (
	"courier/internal/models"

	"gorm.io/gorm"
)

// UserRepository handles database operations for User
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// MigrateTable ensures the User table exists
func (r *UserRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.User{})
}

// Create inserts a new User
func (r *UserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// GetByID returns the user with the given ID
func (r *UserRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &user, nil
}

// GetByUsername returns the user with the given username
func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translateErr(err)
	}
	return &user, nil
}

// GetByEmail returns the user with the given email
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translateErr(err)
	}
	return &user, nil
}

// Delete removes a user row
func (r *UserRepository) Delete(id uint) error {
	return r.db.Delete(&models.User{}, id).Error
}
