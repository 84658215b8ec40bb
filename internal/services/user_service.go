package services

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/adminboard/backend-api/internal/database"
	"github.com/adminboard/backend-api/internal/models"
)

const maxPhoneLength = 32

type UserService struct {
	users AccountStore
}

func NewUserService(users AccountStore) *UserService {
	return &UserService{users: users}
}

// Me returns the account behind an authenticated request.
func (s *UserService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// UpdatePhone attaches a phone number to the caller's account.
func (s *UserService) UpdatePhone(ctx context.Context, userID, phone string) (*models.User, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, invalid("Phone number is required.")
	}
	if !validPhone(phone) {
		return nil, invalid("phone number may only contain digits, spaces, dashes and a leading +")
	}

	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.PhoneNumber = &phone
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func validPhone(phone string) bool {
	if len(phone) > maxPhoneLength {
		return false
	}
	digits := 0
	for i, r := range phone {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' && i == 0, r == ' ', r == '-', r == '(', r == ')':
		default:
			return false
		}
	}
	return digits >= 5
}
