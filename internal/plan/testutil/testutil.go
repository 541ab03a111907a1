package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/ovenbird/bakeplan/internal/middleware"
	"github.com/ovenbird/bakeplan/internal/plan/entity"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	TestSchema = "test_bakeplan"
	JWTSecret  = "bakeplan-jwt-secret-key-2026"
)

// TestEnv holds test environment resources
type TestEnv struct {
	DB     *gorm.DB
	Router *gin.Engine
	T      *testing.T
}

// projectRoot returns the project root directory by looking for go.mod
func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// loadEnv loads .env from the project root
func loadEnv() {
	root := projectRoot()
	if root != "" {
		godotenv.Load(filepath.Join(root, ".env"))
	}
}

// SetupTestDB creates a test database connection using a dedicated test schema.
// Each test gets an isolated schema that is cleaned up after the test.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	loadEnv()

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "bakeplan")
	password := getEnv("DB_PASSWORD", "bakeplan")
	dbname := getEnv("DB_NAME", "bakeplan")

	baseDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// Create a unique test schema for isolation
	schemaName := fmt.Sprintf("%s_%d", TestSchema, time.Now().UnixNano()%1000000)

	// First: create schema using a temporary connection
	setupDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to database for schema setup: %v", err)
	}
	setupDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName))
	sqlSetup, _ := setupDB.DB()
	sqlSetup.Close()

	// Second: open connection with search_path in DSN so ALL pooled connections use test schema
	testDSN := fmt.Sprintf("%s search_path=%s", baseDSN, schemaName)
	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Migrate test tables
	err = db.AutoMigrate(
		&entity.User{},
		&entity.Ingredient{},
		&entity.PurchaseEntry{},
		&entity.Recipe{},
		&entity.RecipeComponent{},
		&entity.ProductionPlan{},
		&entity.PlanTarget{},
		&entity.Snapshot{},
		&entity.PlanAmendment{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	// Cleanup on test completion
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		// Reconnect to drop the schema
		cleanDB, cleanErr := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if cleanErr == nil {
			cleanDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
			sqlClean, _ := cleanDB.DB()
			if sqlClean != nil {
				sqlClean.Close()
			}
		}
	})

	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name, email string) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"email": email,
		"iss":   "bakeplan",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DefaultTestToken returns a token for a default test user
func DefaultTestToken() string {
	return GenerateTestToken("test-user-001", "Test Baker", "baker@test.com")
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a handler.Response-like map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedTestUser creates a test user in the database
func SeedTestUser(t *testing.T, db *gorm.DB, id, name, email string) *entity.User {
	t.Helper()
	user := &entity.User{
		ID:        id,
		Username:  "user_" + id,
		Name:      name,
		Email:     email,
		Status:    "active",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to seed test user: %v", err)
	}
	return user
}

// SeedIngredient creates an ingredient in the database
func SeedIngredient(t *testing.T, db *gorm.DB, id, name, unit, category string) *entity.Ingredient {
	t.Helper()
	ing := &entity.Ingredient{
		ID:        id,
		Name:      name,
		Unit:      unit,
		Category:  category,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(ing).Error; err != nil {
		t.Fatalf("Failed to seed ingredient: %v", err)
	}
	return ing
}

// SeedPurchase creates a purchase entry for an ingredient
func SeedPurchase(t *testing.T, db *gorm.DB, id, ingredientID string, quantity, unitCost float64, purchasedAt time.Time) *entity.PurchaseEntry {
	t.Helper()
	p := &entity.PurchaseEntry{
		ID:           id,
		IngredientID: ingredientID,
		Quantity:     quantity,
		UnitCost:     decimal.NewFromFloat(unitCost),
		PurchasedAt:  purchasedAt,
		CreatedAt:    time.Now(),
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("Failed to seed purchase: %v", err)
	}
	return p
}

// SeedRecipe creates a recipe in the database
func SeedRecipe(t *testing.T, db *gorm.DB, id, name string, batchYield float64) *entity.Recipe {
	t.Helper()
	r := &entity.Recipe{
		ID:         id,
		Name:       name,
		BatchYield: batchYield,
		YieldUnit:  "pcs",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := db.Create(r).Error; err != nil {
		t.Fatalf("Failed to seed recipe: %v", err)
	}
	return r
}

// SeedIngredientComponent adds an ingredient line to a recipe
func SeedIngredientComponent(t *testing.T, db *gorm.DB, id, recipeID, ingredientID string, quantity float64, unit string) *entity.RecipeComponent {
	t.Helper()
	c := &entity.RecipeComponent{
		ID:           id,
		RecipeID:     recipeID,
		Kind:         entity.ComponentKindIngredient,
		IngredientID: &ingredientID,
		Quantity:     quantity,
		Unit:         unit,
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("Failed to seed recipe component: %v", err)
	}
	return c
}

// SeedSubRecipeComponent adds a sub-recipe line to a recipe
func SeedSubRecipeComponent(t *testing.T, db *gorm.DB, id, recipeID, subRecipeID string, quantity float64) *entity.RecipeComponent {
	t.Helper()
	c := &entity.RecipeComponent{
		ID:          id,
		RecipeID:    recipeID,
		Kind:        entity.ComponentKindSubRecipe,
		SubRecipeID: &subRecipeID,
		Quantity:    quantity,
		Unit:        "batch",
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("Failed to seed sub-recipe component: %v", err)
	}
	return c
}

// SeedPackagingComponent adds a packaging line to a recipe
func SeedPackagingComponent(t *testing.T, db *gorm.DB, id, recipeID, ingredientID string, quantity float64, unit string) *entity.RecipeComponent {
	t.Helper()
	c := &entity.RecipeComponent{
		ID:           id,
		RecipeID:     recipeID,
		Kind:         entity.ComponentKindPackaging,
		IngredientID: &ingredientID,
		Quantity:     quantity,
		Unit:         unit,
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("Failed to seed packaging component: %v", err)
	}
	return c
}

// SeedPlan creates a production plan in the database
func SeedPlan(t *testing.T, db *gorm.DB, id, name, status, createdBy string) *entity.ProductionPlan {
	t.Helper()
	p := &entity.ProductionPlan{
		ID:        id,
		Name:      name,
		Status:    status,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("Failed to seed plan: %v", err)
	}
	return p
}

// SeedPlanTarget adds a target line to a plan
func SeedPlanTarget(t *testing.T, db *gorm.DB, id, planID, recipeID string, requested float64) *entity.PlanTarget {
	t.Helper()
	pt := &entity.PlanTarget{
		ID:                id,
		PlanID:            planID,
		RecipeID:          recipeID,
		RequestedQuantity: requested,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	if err := db.Create(pt).Error; err != nil {
		t.Fatalf("Failed to seed plan target: %v", err)
	}
	return pt
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
