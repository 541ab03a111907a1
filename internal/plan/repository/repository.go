package repository

import (
	"errors"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// notFound 将 gorm 的未找到错误统一映射为 ErrNotFound
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Repositories 仓库集合
type Repositories struct {
	Ingredient *IngredientRepository
	Recipe     *RecipeRepository
	Plan       *PlanRepository
	Snapshot   *SnapshotRepository
	Amendment  *AmendmentRepository
	User       *UserRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Ingredient: NewIngredientRepository(db),
		Recipe:     NewRecipeRepository(db),
		Plan:       NewPlanRepository(db),
		Snapshot:   NewSnapshotRepository(db),
		Amendment:  NewAmendmentRepository(db),
		User:       NewUserRepository(db),
	}
}
