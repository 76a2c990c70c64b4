// Package handlers implements the HTTP surface of the snapshot service:
//
//	GET    /healthz                backend reachability
//	GET    /api/db?path=<p>        read a snapshot, 404 when absent
//	POST   /api/db                 {"content": [...], "filename": "<p>"}
//	DELETE /api/db?path=<p>        remove a stored document
//	POST   /api/notify             {"user", "filename", "count"} admin alert
//
// Every /api route requires a bearer token. Admins may write any path,
// other users only their own suggestions file.
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/dmitrijs2005/promptvault/internal/common"
	"github.com/dmitrijs2005/promptvault/internal/logging"
	"github.com/dmitrijs2005/promptvault/internal/server/auth"
	"github.com/dmitrijs2005/promptvault/internal/server/notify"
	"github.com/dmitrijs2005/promptvault/internal/server/snapshots"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

type Handler struct {
	store    snapshots.Backend
	notifier notify.Notifier
	metrics  *Metrics
	logger   logging.Logger
}

func New(store snapshots.Backend, notifier notify.Notifier, metrics *Metrics, logger logging.Logger) *Handler {
	return &Handler{store: store, notifier: notifier, metrics: metrics, logger: logger}
}

// Register mounts the routes on app.
func (h *Handler) Register(app *fiber.App, secretKey []byte) {
	app.Get("/healthz", h.Health)

	api := app.Group("/api", auth.Middleware(secretKey))
	api.Get("/db", h.GetSnapshot)
	api.Post("/db", h.PutSnapshot)
	api.Delete("/db", h.DeleteSnapshot)
	api.Post("/notify", h.Notify)
}

type putRequest struct {
	Content  json.RawMessage `json:"content"`
	Filename string          `json:"filename"`
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func (h *Handler) Health(c *fiber.Ctx) error {
	if err := h.store.Ping(c.UserContext()); err != nil {
		h.logger.Warn(c.UserContext(), "backend ping failed", "error", err)
		return errorJSON(c, fiber.StatusServiceUnavailable, "backend unavailable")
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// queryPath returns the cleaned path query parameter. The value is copied
// out of the request buffer, which fiber reuses once the handler returns.
func queryPath(c *fiber.Ctx) (string, error) {
	return common.CleanPath(utils.CopyString(c.Query("path")))
}

func (h *Handler) GetSnapshot(c *fiber.Ctx) error {
	path, err := queryPath(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	data, err := h.store.Get(c.UserContext(), path)
	switch {
	case errors.Is(err, snapshots.ErrNotFound):
		h.metrics.SnapshotReads.WithLabelValues("not_found").Inc()
		return errorJSON(c, fiber.StatusNotFound, "not found")
	case err != nil:
		h.metrics.SnapshotReads.WithLabelValues("error").Inc()
		h.logger.Error(c.UserContext(), "snapshot read failed", "path", path, "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "storage error")
	}

	h.metrics.SnapshotReads.WithLabelValues("ok").Inc()
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(data)
}

func (h *Handler) PutSnapshot(c *fiber.Ctx) error {
	var req putRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "malformed request body")
	}

	path, err := common.CleanPath(req.Filename)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	if !strings.HasSuffix(path, ".json") {
		return errorJSON(c, fiber.StatusBadRequest, "snapshot filename must end with .json")
	}

	user := auth.User(c)
	if !canWrite(c, path) {
		h.logger.Warn(c.UserContext(), "write denied", "user", user, "path", path)
		return errorJSON(c, fiber.StatusForbidden, "forbidden")
	}

	entries, err := parseArray(req.Content)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	kind := "suggestion"
	if path == common.PrimaryPath {
		kind = "primary"
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, req.Content); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "content must be a JSON array")
	}

	if err := h.store.Put(c.UserContext(), path, compact.Bytes(), user); err != nil {
		h.metrics.SnapshotWrites.WithLabelValues(kind, "error").Inc()
		h.logger.Error(c.UserContext(), "snapshot write failed", "path", path, "user", user, "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "storage error")
	}

	h.metrics.SnapshotWrites.WithLabelValues(kind, "ok").Inc()
	h.logger.Info(c.UserContext(), "snapshot written", "path", path, "user", user, "records", len(entries))

	return c.JSON(fiber.Map{"path": path, "count": len(entries)})
}

func (h *Handler) DeleteSnapshot(c *fiber.Ctx) error {
	path, err := queryPath(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	if !canWrite(c, path) {
		return errorJSON(c, fiber.StatusForbidden, "forbidden")
	}

	err = h.store.Delete(c.UserContext(), path)
	switch {
	case errors.Is(err, snapshots.ErrNotFound):
		return errorJSON(c, fiber.StatusNotFound, "not found")
	case err != nil:
		h.logger.Error(c.UserContext(), "delete failed", "path", path, "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "storage error")
	}

	h.logger.Info(c.UserContext(), "document deleted", "path", path, "user", auth.User(c))
	return c.SendStatus(fiber.StatusNoContent)
}

// Notify forwards a suggestion alert. The user is taken from the token,
// not from the body.
func (h *Handler) Notify(c *fiber.Ctx) error {
	var e notify.Event
	if err := json.Unmarshal(c.Body(), &e); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "malformed request body")
	}

	path, err := common.CleanPath(e.Filename)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	if e.Count < 0 {
		return errorJSON(c, fiber.StatusBadRequest, "count must not be negative")
	}

	e.User = auth.User(c)
	e.Filename = path

	err = h.notifier.Notify(c.UserContext(), e)
	switch {
	case errors.Is(err, notify.ErrThrottled):
		h.metrics.Notifications.WithLabelValues("throttled").Inc()
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "throttled"})
	case err != nil:
		h.metrics.Notifications.WithLabelValues("error").Inc()
		h.logger.Warn(c.UserContext(), "notification failed", "user", e.User, "error", err)
		return errorJSON(c, fiber.StatusBadGateway, "notification failed")
	}

	h.metrics.Notifications.WithLabelValues("sent").Inc()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "sent"})
}

func canWrite(c *fiber.Ctx, path string) bool {
	if auth.IsAdmin(c) {
		return true
	}
	return path == common.SuggestionPath(auth.User(c))
}

func parseArray(content json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New("content must be a JSON array")
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, errors.New("content must be a JSON array")
	}
	return entries, nil
}
