package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLStorage implements the Store interface on a relational database through
// gorm. Each logical collection maps to one table; access and refresh tokens
// share oauth_tokens distinguished by a kind column.
type SQLStorage struct {
	db *gorm.DB
}

// NewSQLStorage opens a gorm-backed store and migrates its tables.
func NewSQLStorage(dialector gorm.Dialector) (*SQLStorage, error) {
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&clientRow{}, &userRow{}, &codeRow{}, &tokenRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLStorage{db: db}, nil
}

type clientRow struct {
	ID           string `gorm:"primaryKey;size:191"`
	Secret       string
	RedirectURIs string // JSON-encoded list
	Grants       string // JSON-encoded list
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (clientRow) TableName() string { return "oauth_clients" }

type userRow struct {
	Handle        string `gorm:"primaryKey;size:191"`
	Email         string `gorm:"index"`
	Name          string
	Image         string
	EmailVerified *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (userRow) TableName() string { return "users" }

type codeRow struct {
	Code                string `gorm:"primaryKey;size:191"`
	ClientID            string `gorm:"index"`
	UserID              string `gorm:"index"`
	RedirectURI         string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
	ExpiresAt           time.Time
	CreatedAt           time.Time
}

func (codeRow) TableName() string { return "oauth_codes" }

type tokenRow struct {
	Token     string `gorm:"primaryKey;size:191"`
	Kind      string `gorm:"index;size:16"`
	ClientID  string `gorm:"index"`
	UserID    string `gorm:"index"`
	Scope     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (tokenRow) TableName() string { return "oauth_tokens" }

func marshalList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	out, _ := json.Marshal(list)
	return string(out)
}

func unmarshalList(data string) []string {
	var list []string
	if data == "" {
		return nil
	}
	_ = json.Unmarshal([]byte(data), &list)
	return list
}

// GetClient retrieves a client by ID
func (s *SQLStorage) GetClient(ctx context.Context, id string) (*Client, error) {
	var row clientRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &Client{
		ID:           row.ID,
		Secret:       row.Secret,
		RedirectURIs: unmarshalList(row.RedirectURIs),
		Grants:       unmarshalList(row.Grants),
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

// SaveClient upserts a client
func (s *SQLStorage) SaveClient(ctx context.Context, client *Client) error {
	row := clientRow{
		ID:           client.ID,
		Secret:       client.Secret,
		RedirectURIs: marshalList(client.RedirectURIs),
		Grants:       marshalList(client.Grants),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

// GetUser retrieves a user by handle
func (s *SQLStorage) GetUser(ctx context.Context, handle string) (*User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).First(&row, "handle = ?", handle).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &User{
		Handle:        row.Handle,
		Email:         row.Email,
		Name:          row.Name,
		Image:         row.Image,
		EmailVerified: row.EmailVerified,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}, nil
}

// SaveUser upserts a user
func (s *SQLStorage) SaveUser(ctx context.Context, user *User) error {
	row := userRow{
		Handle:        user.Handle,
		Email:         user.Email,
		Name:          user.Name,
		Image:         user.Image,
		EmailVerified: user.EmailVerified,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

// GetAuthorizationCode retrieves an authorization code
func (s *SQLStorage) GetAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error) {
	var row codeRow
	if err := s.db.WithContext(ctx).First(&row, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &AuthorizationCode{
		Code:                row.Code,
		ClientID:            row.ClientID,
		UserID:              row.UserID,
		RedirectURI:         row.RedirectURI,
		Scope:               row.Scope,
		CodeChallenge:       row.CodeChallenge,
		CodeChallengeMethod: row.CodeChallengeMethod,
		ExpiresAt:           row.ExpiresAt,
		CreatedAt:           row.CreatedAt,
	}, nil
}

// SaveAuthorizationCode upserts an authorization code
func (s *SQLStorage) SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode) error {
	createdAt := code.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	row := codeRow{
		Code:                code.Code,
		ClientID:            code.ClientID,
		UserID:              code.UserID,
		RedirectURI:         code.RedirectURI,
		Scope:               code.Scope,
		CodeChallenge:       code.CodeChallenge,
		CodeChallengeMethod: code.CodeChallengeMethod,
		ExpiresAt:           code.ExpiresAt,
		CreatedAt:           createdAt,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

// DeleteAuthorizationCode deletes an authorization code
func (s *SQLStorage) DeleteAuthorizationCode(ctx context.Context, code string) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&codeRow{}, "code = ?", code)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *SQLStorage) getToken(ctx context.Context, token, kind string) (*tokenRecord, error) {
	var row tokenRow
	err := s.db.WithContext(ctx).First(&row, "token = ? AND kind = ?", token, kind).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tokenRecord{
		Token:     row.Token,
		Kind:      row.Kind,
		ClientID:  row.ClientID,
		UserID:    row.UserID,
		Scope:     row.Scope,
		ExpiresAt: row.ExpiresAt,
		CreatedAt: row.CreatedAt,
	}, nil
}

func (s *SQLStorage) saveToken(ctx context.Context, record *tokenRecord) error {
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	row := tokenRow{
		Token:     record.Token,
		Kind:      record.Kind,
		ClientID:  record.ClientID,
		UserID:    record.UserID,
		Scope:     record.Scope,
		ExpiresAt: record.ExpiresAt,
		CreatedAt: createdAt,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

// GetAccessToken retrieves an access token
func (s *SQLStorage) GetAccessToken(ctx context.Context, token string) (*AccessToken, error) {
	record, err := s.getToken(ctx, token, tokenKindAccess)
	if err != nil {
		return nil, err
	}
	return record.access(), nil
}

// SaveAccessToken upserts an access token
func (s *SQLStorage) SaveAccessToken(ctx context.Context, token *AccessToken) error {
	return s.saveToken(ctx, accessRecord(token))
}

// GetRefreshToken retrieves a refresh token
func (s *SQLStorage) GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	record, err := s.getToken(ctx, token, tokenKindRefresh)
	if err != nil {
		return nil, err
	}
	return record.refresh(), nil
}

// SaveRefreshToken upserts a refresh token
func (s *SQLStorage) SaveRefreshToken(ctx context.Context, token *RefreshToken) error {
	return s.saveToken(ctx, refreshRecord(token))
}

// DeleteRefreshToken deletes a refresh token
func (s *SQLStorage) DeleteRefreshToken(ctx context.Context, token string) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&tokenRow{}, "token = ? AND kind = ?", token, tokenKindRefresh)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Close closes the database connection
func (s *SQLStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
