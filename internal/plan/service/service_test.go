package service

import (
	"testing"

	"github.com/ovenbird/bakeplan/internal/plan/repository"
	"github.com/ovenbird/bakeplan/internal/plan/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestServices(t *testing.T) (*gorm.DB, *Services) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	return db, NewServices(repos, db, zap.NewNop())
}
