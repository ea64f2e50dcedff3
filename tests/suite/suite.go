package suite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	authhttp "authd/internal/http/auth"
	"authd/internal/http/middleware"
	"authd/internal/lib/jwt"
	"authd/internal/services/auth"
	"authd/internal/services/guard"
	"authd/internal/storage/sqlite"

	"github.com/gofiber/fiber/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

const requestTimeout = 30 * time.Second

type Suite struct {
	App     *fiber.App
	Storage *sqlite.Storage
	Codec   *jwt.Codec
}

// New assembles the whole service against a throwaway sqlite database and
// returns a fiber app ready for in-process requests.
func New(t *testing.T) (context.Context, *Suite) {
	t.Helper()

	storagePath := filepath.Join(t.TempDir(), "authd.db")
	applyMigrations(t, storagePath)

	storage, err := sqlite.New(storagePath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	codec := jwt.NewCodec("test-access-secret", "test-refresh-secret", time.Hour, 7*24*time.Hour)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	authService := auth.New(log, storage, storage, storage, storage, codec)
	accessGuard := guard.New(log, codec, storage)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	mw := middleware.NewAuth(log, accessGuard)
	authhttp.Register(app, log, authService, mw)

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	t.Cleanup(cancel)

	return ctx, &Suite{App: app, Storage: storage, Codec: codec}
}

func applyMigrations(t *testing.T, storagePath string) {
	t.Helper()

	schema, err := os.ReadFile(filepath.Join("..", "migrations", "000001_init.up.sql"))
	require.NoError(t, err)

	db, err := sql.Open("sqlite3", storagePath)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(string(schema))
	require.NoError(t, err)
}

// Request performs an in-process JSON request and decodes the response
// envelope. An empty token leaves the Authorization header unset.
func (s *Suite) Request(t *testing.T, method, target, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.App.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &payload))
	}

	return resp.StatusCode, payload
}

// Data digs the "data" object out of a success envelope.
func Data(t *testing.T, payload map[string]any) map[string]any {
	t.Helper()

	data, ok := payload["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %v", payload)
	return data
}
