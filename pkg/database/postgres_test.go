package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-timetable-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5433, User: "sma", Password: "secret", Name: "timetable", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5433 user=sma password=secret dbname=timetable sslmode=disable", dsn)
}
