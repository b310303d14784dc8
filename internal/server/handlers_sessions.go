package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/liveshop/liveshop/internal/domain"
	apperrors "github.com/liveshop/liveshop/internal/errors"
)

const (
	maxSessionTitleLength       = 200
	maxSessionDescriptionLength = 500
)

type createSessionRequest struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Products    []uuid.UUID `json:"products"`
	StartTime   *time.Time  `json:"startTime"`
}

func (r createSessionRequest) validate() error {
	if r.Title == "" {
		return apperrors.ValidationError("Session title is required")
	}
	if len(r.Title) > maxSessionTitleLength {
		return apperrors.ValidationError(fmt.Sprintf("Title cannot exceed %d characters", maxSessionTitleLength))
	}
	if r.Description == "" {
		return apperrors.ValidationError("Session description is required")
	}
	if len(r.Description) > maxSessionDescriptionLength {
		return apperrors.ValidationError(fmt.Sprintf("Description cannot exceed %d characters", maxSessionDescriptionLength))
	}
	return nil
}

func (s *Server) handleListSessions(c echo.Context) error {
	ctx := c.Request().Context()

	filter := domain.SessionFilter{}
	if status := c.QueryParam("status"); status != "" {
		st := domain.SessionStatus(status)
		if !domain.ValidStatus(st) {
			return apperrors.ValidationError("Invalid status value")
		}
		filter.Status = &st
	}

	sessions, err := s.sessions.List(ctx, filter)
	if err != nil {
		return apperrors.InternalError("Failed to list sessions", err)
	}

	views := make([]sessionView, 0, len(sessions))
	for _, sess := range sessions {
		view, err := s.populateSession(ctx, sess)
		if err != nil {
			return apperrors.InternalError("Failed to load session products", err)
		}
		views = append(views, view)
	}

	return c.JSON(http.StatusOK, listResponse{Success: true, Count: len(views), Data: views})
}

func (s *Server) handleGetLiveSession(c echo.Context) error {
	ctx := c.Request().Context()

	sess, err := s.sessions.FindLive(ctx)
	if errors.Is(err, domain.ErrSessionNotFound) {
		// No live session is not an error, just an empty result.
		return c.JSON(http.StatusOK, dataResponse{Success: true, Data: nil})
	}
	if err != nil {
		return apperrors.InternalError("Failed to find live session", err)
	}

	view, err := s.populateSession(ctx, *sess)
	if err != nil {
		return apperrors.InternalError("Failed to load session products", err)
	}

	return c.JSON(http.StatusOK, dataResponse{Success: true, Data: view})
}

func (s *Server) handleGetSession(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.ValidationError("Invalid session ID")
	}

	sess, err := s.sessions.GetByID(ctx, id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return apperrors.NotFoundError("Session not found")
	}
	if err != nil {
		return apperrors.InternalError("Failed to get session", err)
	}

	view, err := s.populateSession(ctx, *sess)
	if err != nil {
		return apperrors.InternalError("Failed to load session products", err)
	}

	return c.JSON(http.StatusOK, dataResponse{Success: true, Data: view})
}

func (s *Server) handleCreateSession(c echo.Context) error {
	ctx := c.Request().Context()

	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("Invalid request body")
	}
	if err := req.validate(); err != nil {
		return err
	}

	startTime := time.Now()
	if req.StartTime != nil {
		startTime = *req.StartTime
	}

	sess, err := s.sessions.Create(ctx, req.Title, req.Description, req.Products, startTime)
	if err != nil {
		return apperrors.InternalError("Failed to create session", err)
	}

	view, err := s.populateSession(ctx, *sess)
	if err != nil {
		return apperrors.InternalError("Failed to load session products", err)
	}

	return c.JSON(http.StatusCreated, dataResponse{
		Success: true,
		Message: "Session created successfully",
		Data:    view,
	})
}

func (s *Server) handleUpdateSessionStatus(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.ValidationError("Invalid session ID")
	}

	var req struct {
		Status domain.SessionStatus `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("Invalid request body")
	}
	if !domain.ValidStatus(req.Status) {
		return apperrors.ValidationError("Invalid status value")
	}

	sess, err := s.sessions.SetStatus(ctx, id, req.Status)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return apperrors.NotFoundError("Session not found")
	}
	if err != nil {
		return apperrors.InternalError("Failed to update session status", err)
	}

	view, err := s.populateSession(ctx, *sess)
	if err != nil {
		return apperrors.InternalError("Failed to load session products", err)
	}

	return c.JSON(http.StatusOK, dataResponse{
		Success: true,
		Message: fmt.Sprintf("Session %s successfully", req.Status),
		Data:    view,
	})
}

func (s *Server) handleUpdateSessionAnalytics(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.ValidationError("Invalid session ID")
	}

	var analytics domain.Analytics
	if err := c.Bind(&analytics); err != nil {
		return apperrors.ValidationError("Invalid request body")
	}

	sess, err := s.sessions.ReplaceAnalytics(ctx, id, analytics)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return apperrors.NotFoundError("Session not found")
	}
	if err != nil {
		return apperrors.InternalError("Failed to update session analytics", err)
	}

	return c.JSON(http.StatusOK, dataResponse{Success: true, Data: sess})
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.ValidationError("Invalid session ID")
	}

	err = s.sessions.Delete(ctx, id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return apperrors.NotFoundError("Session not found")
	}
	if err != nil {
		return apperrors.InternalError("Failed to delete session", err)
	}

	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: "Session deleted successfully"})
}
