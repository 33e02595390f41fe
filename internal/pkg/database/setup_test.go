package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigDSN(t *testing.T) {
	mysqlCfg := Config{Driver: "mysql", Host: "db", Port: "3306", Name: "membergate"}
	assert.Equal(t,
		"reader:pw@tcp(db:3306)/membergate?charset=utf8mb4&parseTime=True&loc=Local",
		mysqlCfg.DSN("reader", "pw"))

	pgCfg := Config{Driver: "postgres", Host: "db", Port: "5432", Name: "membergate"}
	assert.Equal(t,
		"host=db user=writer password=pw dbname=membergate port=5432 sslmode=disable TimeZone=UTC",
		pgCfg.DSN("writer", "pw"))
}

func TestConfigHasWriteCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"shared user", Config{User: "app"}, true},
		{"dedicated writer", Config{User: "reader", WriteUser: "writer"}, true},
		{"nobody", Config{}, false},
		{"read only flag", Config{User: "app", WriteUser: "writer", ReadOnly: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.HasWriteCredentials())
		})
	}
}

func TestModelsAreRegistered(t *testing.T) {
	assert.Len(t, Models(), 12)
}
