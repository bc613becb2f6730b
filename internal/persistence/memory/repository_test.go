package memory

import (
	"testing"

	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/persistence/storetest"
)

func TestRepositoryContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.Repository {
		return NewRepository()
	})
}
