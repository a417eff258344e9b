package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdminTarget(t *testing.T) {
	tests := []struct {
		name      string
		dsn       string
		wantDB    string
		wantAdmin string
		wantOK    bool
	}{
		{
			name:      "url dsn",
			dsn:       "postgres://u:p@db:5432/madgic_chat?sslmode=disable",
			wantDB:    "madgic_chat",
			wantAdmin: "postgres://u:p@db:5432/postgres?sslmode=disable",
			wantOK:    true,
		},
		{name: "maintenance db", dsn: "postgres://u:p@db:5432/postgres"},
		{name: "no db", dsn: "postgresql://u:p@db:5432"},
		{name: "key value dsn", dsn: "host=db user=u dbname=madgic_chat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, admin, ok := adminTarget(tt.dsn)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantDB, db)
			assert.Equal(t, tt.wantAdmin, admin)
		})
	}
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"madgic"`, quoteIdentifier("madgic"))
	assert.Equal(t, `"we""ird"`, quoteIdentifier(`we"ird`))
}

func TestConnectRequiresDSN(t *testing.T) {
	_, err := Connect(Config{})
	assert.EqualError(t, err, "database DSN is empty")
}
