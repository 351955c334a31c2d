package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func TestRequestIDReplacesMalformedHeader(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "not-a-uuid\ninjected-log-line")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	got := resp.Header.Get(requestIDHeader)
	if _, err := uuid.Parse(got); err != nil {
		t.Fatalf("expected a generated UUID, got %q", got)
	}
}

func TestRequestIDHonorsValidHeader(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	supplied := uuid.NewString()
	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, supplied)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get(requestIDHeader); got != supplied {
		t.Fatalf("expected supplied request id %q to survive, got %q", supplied, got)
	}
}

func TestAuditLogsUserAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	app := fiber.New()
	app.Use(RequestID())
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", "user-1")
		return c.Next()
	})
	app.Use(Audit(logger))
	app.Post("/transfer", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest(fiber.MethodPost, "/transfer", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("audit log is not one JSON line: %v (%s)", err, buf.String())
	}
	if entry["user_id"] != "user-1" {
		t.Fatalf("expected user_id in audit entry, got %v", entry)
	}
	if entry["method"] != "POST" || entry["path"] != "/transfer" {
		t.Fatalf("unexpected method/path in audit entry: %v", entry)
	}
	reqID, _ := entry["request_id"].(string)
	if _, err := uuid.Parse(reqID); err != nil {
		t.Fatalf("expected UUID request_id in audit entry, got %q", reqID)
	}
}
