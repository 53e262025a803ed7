package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log"
	"strings"
	"time"

	"github.com/go-authgate/accountgate/internal/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	db    *gorm.DB
	locks *keyedMutex
}

// Option configures New
type Option func(*options)

type options struct {
	adminEmail    string
	adminPassword string
	logLevel      logger.LogLevel
}

// WithDefaultAdmin seeds an admin account with a password credential when
// the accounts table is empty. An empty password generates a random one.
func WithDefaultAdmin(email, password string) Option {
	return func(o *options) {
		o.adminEmail = email
		o.adminPassword = password
	}
}

// WithLogLevel overrides the gorm logger level (default Warn)
func WithLogLevel(level logger.LogLevel) Option {
	return func(o *options) {
		o.logLevel = level
	}
}

func New(driver, dsn string, opts ...Option) (*Store, error) {
	o := options{logLevel: logger.Warn}
	for _, opt := range opts {
		opt(&o)
	}

	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(o.logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if canonicalDriver(driver) == "sqlite" {
		// SQLite has no row locks; a single connection serialises transactions
		// and keeps ":memory:" databases alive for the life of the pool.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(
		&models.Account{},
		&models.IdentityLink{},
		&models.Session{},
		&models.TwoFactorCredential{},
		&models.BackupCode{},
		&models.VerificationToken{},
		&models.Passkey{},
		&models.AuditLog{},
	); err != nil {
		return nil, err
	}

	store := &Store{db: db, locks: newKeyedMutex()}

	if o.adminEmail != "" {
		if err := store.seedAdmin(o.adminEmail, o.adminPassword); err != nil {
			log.Printf("Warning: failed to seed data: %v", err)
		}
	}

	return store, nil
}

// generateRandomPassword generates a random password of specified length
func generateRandomPassword(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes)[:length], nil
}

func (s *Store) seedAdmin(email, password string) error {
	var count int64
	if err := s.db.Model(&models.Account{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	generated := password == ""
	if generated {
		var err error
		if password, err = generateRandomPassword(16); err != nil {
			return err
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	account := &models.Account{
		ID:            uuid.New().String(),
		Email:         email,
		EmailVerified: true,
		Name:          "admin",
		Role:          models.RoleAdmin,
	}
	link := &models.IdentityLink{
		ID:                uuid.New().String(),
		AccountID:         account.ID,
		ProviderID:        models.ProviderCredential,
		ExternalAccountID: account.ID,
		PasswordHash:      string(hash),
	}
	if err := s.CreateAccountWithIdentity(account, link); err != nil {
		return err
	}

	if generated {
		log.Printf("Created default admin: %s / %s", email, password)
	} else {
		log.Printf("Created default admin: %s", email)
	}
	return nil
}

// Health checks the database connection
func (s *Store) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB returns the underlying GORM database connection
func (s *Store) DB() *gorm.DB {
	return s.db
}

func now() time.Time {
	return time.Now().UTC()
}
