package credential

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"sms-console/internal/model"
	"sms-console/pkg/db"
	"sms-console/pkg/metrics"
)

// SettingKey is the settings row holding the gateway credentials.
const SettingKey = "sms_api"

var ErrNotConfigured = errors.New("API credentials are not configured")

type Store struct {
	db *db.DB
}

func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Get returns ErrNotConfigured when the row is missing or either field is empty.
func (s *Store) Get(ctx context.Context) (model.GatewayCredentials, error) {
	const query = `SELECT value FROM settings WHERE setting_key = ?`

	var raw []byte
	queryFn := metrics.DBExecObserver("select_gateway_credentials", func(c context.Context) error {
		return s.db.QueryRowxContext(c, query, SettingKey).Scan(&raw)
	})
	if err := queryFn(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.GatewayCredentials{}, ErrNotConfigured
		}
		return model.GatewayCredentials{}, err
	}

	var creds model.GatewayCredentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return model.GatewayCredentials{}, fmt.Errorf("decode %s setting: %w", SettingKey, err)
	}
	if !creds.Complete() {
		return model.GatewayCredentials{}, ErrNotConfigured
	}
	return creds, nil
}

func (s *Store) Save(ctx context.Context, creds model.GatewayCredentials) error {
	b, err := json.Marshal(creds)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO settings (setting_key, value) VALUES (?, CAST(? AS JSON))
		ON DUPLICATE KEY UPDATE value = VALUES(value)
	`
	execFn := metrics.DBExecObserver("upsert_gateway_credentials", func(c context.Context) error {
		_, err := s.db.ExecContext(c, query, SettingKey, string(b))
		return err
	})
	return execFn(ctx)
}
