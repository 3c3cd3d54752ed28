package routes

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pridiuksson/ninegrid/internal/app/services"
)

// GridRoutes exposes the grid document over a JSON API. It is the page
// controller: identity comes from the session, state from the grid service.
type GridRoutes struct {
	grid      *services.GridService
	saveDelay time.Duration
}

// NewGridRoutes constructs grid routes.
func NewGridRoutes(grid *services.GridService) *GridRoutes {
	return &GridRoutes{grid: grid, saveDelay: time.Second}
}

// RegisterRoutes registers the grid API on the server.
func (g *GridRoutes) RegisterRoutes(s *echo.Echo) {
	api := s.Group("/api/grid", WithIdentity)
	api.GET("", g.handleGet)
	api.POST("/slots/:index/image", g.handleAddImage)
	api.DELETE("/slots/:index/image", g.handleRemoveImage)
	api.PUT("/text", g.handleSetText)
	api.POST("/save", g.handleSave)
	api.GET("/export", g.handleExport)
}

type gridResponse struct {
	services.Snapshot
	User *sessionUser `json:"user"`
}

type sessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (g *GridRoutes) handleGet(c echo.Context) error {
	userID, user := identity(c)
	snap, err := g.grid.Reconcile(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusBadGateway, errorBody(err))
	}
	return c.JSON(http.StatusOK, gridResponse{Snapshot: snap, User: user})
}

func (g *GridRoutes) handleAddImage(c echo.Context) error {
	index, err := slotIndex(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(fmt.Errorf("missing image form file: %w", err)))
	}
	file, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}
	defer file.Close()

	// Read one byte past the cap so the service sees oversized files as
	// oversized instead of silently truncated.
	data, err := io.ReadAll(io.LimitReader(file, services.MaxUploadBytes+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}

	userID, _ := identity(c)
	url, err := g.grid.AddImage(c.Request().Context(), userID, index, services.Upload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get(echo.HeaderContentType),
		Data:        data,
	})
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			return c.JSON(http.StatusBadRequest, errorBody(err))
		}
		return c.JSON(http.StatusBadGateway, errorBody(err))
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}

func (g *GridRoutes) handleRemoveImage(c echo.Context) error {
	index, err := slotIndex(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}
	userID, _ := identity(c)
	if err := g.grid.RemoveImage(c.Request().Context(), userID, index); err != nil {
		if errors.Is(err, services.ErrValidation) {
			return c.JSON(http.StatusBadRequest, errorBody(err))
		}
		return c.JSON(http.StatusBadGateway, errorBody(err))
	}
	return c.NoContent(http.StatusNoContent)
}

func (g *GridRoutes) handleSetText(c echo.Context) error {
	var body struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}
	userID, _ := identity(c)
	g.grid.SetText(userID, body.Text)
	return c.NoContent(http.StatusNoContent)
}

// handleSave simulates a save step. Per-slot uploads already persisted
// everything; the delay only drives the saving indicator.
func (g *GridRoutes) handleSave(c echo.Context) error {
	select {
	case <-time.After(g.saveDelay):
	case <-c.Request().Context().Done():
		return c.Request().Context().Err()
	}
	return c.JSON(http.StatusOK, map[string]bool{"saved": true})
}

func (g *GridRoutes) handleExport(c echo.Context) error {
	userID, _ := identity(c)
	data, err := g.grid.Export(userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody(err))
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", services.ExportFilename))
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
}

func identity(c echo.Context) (string, *sessionUser) {
	user, ok := GetAuthUser(c)
	if !ok {
		return "", nil
	}
	return user.ID, &sessionUser{ID: user.ID, Email: user.Email}
}

func slotIndex(c echo.Context) (int, error) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return 0, fmt.Errorf("invalid slot index %q", c.Param("index"))
	}
	return index, nil
}

func errorBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}
