package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/timetable-solver-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host: "db", Port: 5433, User: "solver", Password: "secret", Name: "timetable_solver", SSLMode: "require",
	})
	assert.Equal(t, "host=db port=5433 user=solver password=secret dbname=timetable_solver sslmode=require", dsn)
}
