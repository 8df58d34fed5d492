package http

import (
	"net/http"
	"strconv"

	"github.com/fyrsmithlabs/frontdesk/internal/callsession"
	"github.com/fyrsmithlabs/frontdesk/internal/desk"
	"github.com/fyrsmithlabs/frontdesk/internal/helprequest"
	"github.com/fyrsmithlabs/frontdesk/internal/knowledge"
	"github.com/fyrsmithlabs/frontdesk/internal/logging"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// handleHealth reports liveness and the pending queue depth.
func (s *Server) handleHealth(c echo.Context) error {
	ctx := c.Request().Context()
	n, err := s.desk.PendingCount(ctx)
	if err != nil {
		s.logger.Warn(ctx, "health check degraded", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "degraded"})
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", PendingHelp: n})
}

func (s *Server) bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid request body", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

// handleAsk routes a caller question. When the escalation could not be
// stored the caller still receives the polite message, with status 503.
func (s *Server) handleAsk(c echo.Context) error {
	var req AskRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	res, err := s.desk.RouteQuestion(c.Request().Context(), desk.AskParams{
		Question:  req.Question,
		CallerID:  req.CallerID,
		SessionID: req.SessionID,
	})
	if err != nil {
		if res != nil {
			return c.JSON(http.StatusServiceUnavailable, res)
		}
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleListRequests(c echo.Context) error {
	reqs, err := s.desk.ListRequests(c.Request().Context(), helprequest.Status(c.QueryParam("status")))
	if err != nil {
		return err
	}
	if reqs == nil {
		reqs = []*helprequest.HelpRequest{}
	}
	return c.JSON(http.StatusOK, reqs)
}

func (s *Server) handleGetRequest(c echo.Context) error {
	req, err := s.desk.GetRequest(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, req)
}

func (s *Server) handleRespond(c echo.Context) error {
	var body RespondRequest
	if err := s.bind(c, &body); err != nil {
		return err
	}
	req, err := s.desk.RespondToRequest(c.Request().Context(), c.Param("id"), body.Response)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, req)
}

func (s *Server) handleUnresolved(c echo.Context) error {
	req, err := s.desk.MarkRequestUnresolved(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, req)
}

func (s *Server) handleListKnowledge(c echo.Context) error {
	items, err := s.desk.ListKnowledge(c.Request().Context(), c.QueryParam("search"))
	if err != nil {
		return err
	}
	if items == nil {
		items = []knowledge.Item{}
	}
	return c.JSON(http.StatusOK, items)
}

func (s *Server) handleAddKnowledge(c echo.Context) error {
	var body KnowledgeRequest
	if err := s.bind(c, &body); err != nil {
		return err
	}
	item, err := s.desk.AddKnowledge(c.Request().Context(), body.Question, body.Answer, body.Category)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, item)
}

func (s *Server) handleUpdateKnowledge(c echo.Context) error {
	var patch knowledge.Patch
	if err := s.bind(c, &patch); err != nil {
		return err
	}
	item, err := s.desk.UpdateKnowledge(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

func (s *Server) handleDeleteKnowledge(c echo.Context) error {
	deleted, err := s.desk.DeleteKnowledge(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, DeleteResponse{Deleted: deleted})
}

func (s *Server) sessions() (*callsession.Service, error) {
	if svc := s.desk.Sessions(); svc != nil {
		return svc, nil
	}
	return nil, echo.NewHTTPError(http.StatusNotImplemented, "call sessions are disabled")
}

func (s *Server) handleStartCall(c echo.Context) error {
	svc, err := s.sessions()
	if err != nil {
		return err
	}
	var body StartCallRequest
	if err := s.bind(c, &body); err != nil {
		return err
	}
	sess, err := svc.Start(c.Request().Context(), body.CallerID, body.CallerName)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sess)
}

func (s *Server) handleListCalls(c echo.Context) error {
	svc, err := s.sessions()
	if err != nil {
		return err
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
	}
	sessions, err := svc.List(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	if sessions == nil {
		sessions = []*callsession.Session{}
	}
	return c.JSON(http.StatusOK, sessions)
}

func (s *Server) handleGetCall(c echo.Context) error {
	svc, err := s.sessions()
	if err != nil {
		return err
	}
	sess, err := svc.Get(c.Request().Context(), c.Param("sessionId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess)
}

func (s *Server) handleEndCall(c echo.Context) error {
	svc, err := s.sessions()
	if err != nil {
		return err
	}
	ctx := logging.WithSessionID(c.Request().Context(), c.Param("sessionId"))
	sess, err := svc.End(ctx, c.Param("sessionId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess)
}

func (s *Server) handleAppendTranscript(c echo.Context) error {
	svc, err := s.sessions()
	if err != nil {
		return err
	}
	var body TranscriptRequest
	if err := s.bind(c, &body); err != nil {
		return err
	}
	sess, err := svc.AppendTranscript(c.Request().Context(), c.Param("sessionId"), body.Speaker, body.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess)
}
