package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pridiuksson/ninegrid/internal/debugbus"
)

// DebugRoutes exposes the debug event bus: the buffered log, an export
// download, and a live SSE stream of CloudEvents-wrapped entries.
type DebugRoutes struct {
	bus *debugbus.Bus
}

// NewDebugRoutes constructs debug routes over the given bus.
func NewDebugRoutes(bus *debugbus.Bus) *DebugRoutes {
	return &DebugRoutes{bus: bus}
}

// RegisterRoutes registers the debug API on the server.
func (d *DebugRoutes) RegisterRoutes(s *echo.Echo) {
	api := s.Group("/api/debug")
	api.GET("/logs", d.handleLogs)
	api.DELETE("/logs", d.handleClear)
	api.GET("/logs/export", d.handleExport)
	api.GET("/events", d.handleEvents)
}

func (d *DebugRoutes) handleLogs(c echo.Context) error {
	return c.JSON(http.StatusOK, d.bus.Entries())
}

func (d *DebugRoutes) handleClear(c echo.Context) error {
	d.bus.Clear()
	return c.NoContent(http.StatusNoContent)
}

func (d *DebugRoutes) handleExport(c echo.Context) error {
	data, err := d.bus.Export()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody(err))
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", debugbus.ExportFilename(time.Now())))
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
}

func (d *DebugRoutes) handleEvents(c echo.Context) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	entries, cancel := d.bus.Subscribe()
	defer cancel()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case entry, ok := <-entries:
			if !ok {
				return nil
			}
			event, err := entry.CloudEvent()
			if err != nil {
				continue
			}
			body, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", body)
			w.Flush()
		}
	}
}
