package students

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	ledgersvc "bprd-credits/internal/application/ledger"
	"bprd-credits/internal/infrastructure/database"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupStudentsTest(t *testing.T) (*Handlers, *ledgersvc.Service) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))
	ledger := &ledgersvc.Service{DB: db}
	return &Handlers{Service: ledger}, ledger
}

func newApp(h *Handlers, user map[string]interface{}) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", user)
		return c.Next()
	})
	app.Post("/students", h.Provision)
	app.Get("/students/:id/ledger", h.Ledger)
	app.Get("/students/:id/history", h.History)
	return app
}

func decode(t *testing.T, body io.Reader) map[string]interface{} {
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestProvision_CreatesThenReturnsExisting(t *testing.T) {
	h, _ := setupStudentsTest(t)
	app := newApp(h, map[string]interface{}{"user_id": "admin-1", "role": "admin"})

	send := func(name string) int {
		body, _ := json.Marshal(map[string]interface{}{"student_id": "S-1", "name": name})
		req := httptest.NewRequest("POST", "/students", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		out := decode(t, resp.Body)
		assert.Equal(t, "Asha Rao", out["data"].(map[string]interface{})["name"])
		return resp.StatusCode
	}
	assert.Equal(t, fiber.StatusCreated, send("Asha Rao"))
	assert.Equal(t, fiber.StatusOK, send("Someone Else"))
}

func TestProvision_ValidationErrors(t *testing.T) {
	h, _ := setupStudentsTest(t)
	app := newApp(h, map[string]interface{}{"user_id": "admin-1", "role": "admin"})

	body, _ := json.Marshal(map[string]interface{}{"student_id": "  ", "email": "not-an-email"})
	req := httptest.NewRequest("POST", "/students", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	details := decode(t, resp.Body)["error"].(map[string]interface{})["details"].(map[string]interface{})
	assert.Contains(t, details, "student_id")
	assert.Contains(t, details, "name")
	assert.Contains(t, details, "email")
}

func TestLedger_OwnRecordOnly(t *testing.T) {
	h, ledger := setupStudentsTest(t)
	ctx := context.Background()
	_, _, err := ledger.Provision(ctx, ledgersvc.ProvisionInput{StudentID: "S-1", Name: "Asha"})
	require.NoError(t, err)
	_, err = ledger.Credit(ctx, nil, "S-1", "Cyber_Security", 16, ledgersvc.Event{Organization: "CDTI"})
	require.NoError(t, err)

	app := newApp(h, map[string]interface{}{"user_id": "u-1", "role": "student", "student_id": "S-1"})
	resp, err := app.Test(httptest.NewRequest("GET", "/students/S-1/ledger", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := decode(t, resp.Body)["data"].(map[string]interface{})
	assert.Equal(t, 16.0, data["total_credits"])
	assert.Equal(t, 16.0, data["balances"].(map[string]interface{})["Cyber_Security"])

	resp, err = app.Test(httptest.NewRequest("GET", "/students/S-2/ledger", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestLedger_NotFound(t *testing.T) {
	h, _ := setupStudentsTest(t)
	app := newApp(h, map[string]interface{}{"user_id": "admin-1", "role": "admin"})
	resp, err := app.Test(httptest.NewRequest("GET", "/students/missing/ledger", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestHistory_FiltersByCanonicalUmbrella(t *testing.T) {
	h, ledger := setupStudentsTest(t)
	ctx := context.Background()
	_, _, err := ledger.Provision(ctx, ledgersvc.ProvisionInput{StudentID: "S-1", Name: "Asha"})
	require.NoError(t, err)
	_, err = ledger.Credit(ctx, nil, "S-1", "Cyber_Security", 5, ledgersvc.Event{Organization: "CDTI"})
	require.NoError(t, err)
	_, err = ledger.Credit(ctx, nil, "S-1", "Criminal_Law", 3, ledgersvc.Event{Organization: "NPA"})
	require.NoError(t, err)

	app := newApp(h, map[string]interface{}{"user_id": "poc-1", "role": "poc"})
	resp, err := app.Test(httptest.NewRequest("GET", "/students/S-1/history?umbrella=cyber%20security", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	out := decode(t, resp.Body)
	entries := out["data"].([]interface{})
	require.Len(t, entries, 1)
	assert.Equal(t, "Cyber_Security", entries[0].(map[string]interface{})["umbrella"])

	resp, err = app.Test(httptest.NewRequest("GET", "/students/S-1/history?umbrella=astrology", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
