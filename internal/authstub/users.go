// ABOUTME: User directory for the dev auth service
// ABOUTME: Loads users from YAML or seeds defaults; passwords are bcrypt-hashed at load

package authstub

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jschulte/usmax-nda-sub000/internal/permissions"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// ErrInvalidCredentials is returned for an unknown email or wrong password
var ErrInvalidCredentials = errors.New("invalid email or password")

// UserRecord is one entry of the users file
type UserRecord struct {
	ID          string   `yaml:"id"`
	Email       string   `yaml:"email"`
	Password    string   `yaml:"password"`
	Permissions []string `yaml:"permissions"`
	Roles       []string `yaml:"roles"`
}

type usersFile struct {
	Users []UserRecord `yaml:"users"`
}

// User is a directory entry with its password hash
type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	Permissions  []string
	Roles        []string
}

// UserStore looks users up by email, case-insensitively
type UserStore struct {
	byEmail map[string]*User
}

// DefaultUsers are seeded when no users file is configured
func DefaultUsers() []UserRecord {
	return []UserRecord{
		{
			ID:       "00000000-0000-0000-0000-000000000001",
			Email:    "admin@usmax.com",
			Password: "Admin123!@#$",
			Permissions: []string{
				permissions.NDAView, permissions.NDACreate, permissions.NDAApprove,
				permissions.NDADelete, permissions.TemplatesManage, permissions.UsersManage,
			},
			Roles: []string{permissions.RoleAdmin},
		},
		{
			ID:          "00000000-0000-0000-0000-000000000002",
			Email:       "viewer@usmax.com",
			Password:    "Viewer123!@#$",
			Permissions: []string{permissions.NDAView},
			Roles:       []string{"Read-Only"},
		},
	}
}

// LoadUserRecords reads a YAML users file
func LoadUserRecords(path string) ([]UserRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading users file: %w", err)
	}
	var f usersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing users file %s: %w", path, err)
	}
	if len(f.Users) == 0 {
		return nil, fmt.Errorf("users file %s defines no users", path)
	}
	return f.Users, nil
}

// NewUserStore hashes every record's password with the given bcrypt cost
func NewUserStore(records []UserRecord, cost int) (*UserStore, error) {
	s := &UserStore{byEmail: make(map[string]*User, len(records))}
	for i, r := range records {
		if r.ID == "" || r.Email == "" || r.Password == "" {
			return nil, fmt.Errorf("user %d: id, email and password are required", i)
		}
		key := strings.ToLower(r.Email)
		if _, dup := s.byEmail[key]; dup {
			return nil, fmt.Errorf("user %d: duplicate email %s", i, r.Email)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), cost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", r.Email, err)
		}
		s.byEmail[key] = &User{
			ID:           r.ID,
			Email:        r.Email,
			PasswordHash: hash,
			Permissions:  r.Permissions,
			Roles:        r.Roles,
		}
	}
	return s, nil
}

// Authenticate checks email/password
func (s *UserStore) Authenticate(email, password string) (*User, error) {
	u, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Len returns the number of users
func (s *UserStore) Len() int {
	return len(s.byEmail)
}
