package service

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"courier/internal/events"
	"courier/internal/models"
	"courier/internal/storage"
)

// UserService handles registration and authentication.
type UserService struct {
	users *storage.UserRepository
	bus   *events.Bus
}

func NewUserService(users *storage.UserRepository, bus *events.Bus) *UserService {
	return &UserService{users: users, bus: bus}
}

// Register creates an account with a bcrypt-hashed password and announces
// the new user on the bus.
func (s *UserService) Register(username, email, password string) (*models.User, error) {
	if username == "" || email == "" {
		return nil, fmt.Errorf("username and email are required")
	}
	if len(password) < 6 {
		return nil, fmt.Errorf("password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.bus.Publish(events.UserCreated, &events.UserCreatedPayload{User: user})
	return user, nil
}

// Authenticate verifies a username/password pair.
func (s *UserService) Authenticate(username, password string) (*models.User, error) {
	user, err := s.users.GetByUsername(username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetByID returns a user by primary key.
func (s *UserService) GetByID(id uint) (*models.User, error) {
	return s.users.GetByID(id)
}

// Delete removes an account and announces it so dependent rows (messages,
// notifications, history, conversation memberships) are cleaned up.
func (s *UserService) Delete(id uint) error {
	if _, err := s.users.GetByID(id); err != nil {
		return err
	}
	if err := s.users.Delete(id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.bus.Publish(events.UserDeleted, &events.UserDeletedPayload{UserID: id})
	return nil
}
