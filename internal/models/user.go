package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Staff roles carried in access tokens
const (
	RoleManager = "manager"
	RoleCashier = "cashier"
)

// User is a staff account. Terminals act on behalf of a user through OAuth clients.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	Name         string    `json:"name"`
	Role         string    `json:"role" gorm:"not null"`
	Password     string    `json:"-" gorm:"-"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HashPassword replaces the plain Password with its bcrypt hash
func (u *User) HashPassword() error {
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	u.Password = ""
	return nil
}

// CheckPassword compares a plain password against the stored hash
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}
