package storetest

import (
	"testing"

	"github.com/peterldowns/testy/check"
)

func TestWithSearchPath(t *testing.T) {
	check.Equal(t,
		"postgres://u:p@localhost:5432/estatesale?search_path=test_x&sslmode=disable",
		withSearchPath("postgres://u:p@localhost:5432/estatesale?sslmode=disable", "test_x"))
	check.Equal(t,
		"host=localhost dbname=estatesale search_path=test_x",
		withSearchPath("host=localhost dbname=estatesale", "test_x"))
}
