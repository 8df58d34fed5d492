package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/frontdesk/internal/logging"
	"github.com/fyrsmithlabs/frontdesk/internal/notify"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Server-sent event format:
//
//	event: new-help-request
//	data: {"id":"...","question":"...","status":"pending",...}
//
// A comment line is written every heartbeat interval so proxies keep the
// connection open.

func (s *Server) handleSupervisorEvents(c echo.Context) error {
	return s.stream(c, notify.Supervisors)
}

func (s *Server) handleCallerEvents(c echo.Context) error {
	callerID := c.Param("callerId")
	if callerID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "caller id is required")
	}
	c.SetRequest(c.Request().WithContext(logging.WithCallerID(c.Request().Context(), callerID)))
	return s.stream(c, notify.CallerChannel(callerID))
}

// stream relays events from ch until the client disconnects or the bus
// closes the subscription.
func (s *Server) stream(c echo.Context, ch notify.Channel) error {
	ctx := c.Request().Context()
	events, cancel, err := s.events.Subscribe(ctx, ch)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "event stream unavailable")
	}
	defer cancel()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	w.Flush()

	s.logger.Debug(ctx, "event stream opened", zap.String("channel", string(ch)))
	defer s.logger.Debug(ctx, "event stream closed", zap.String("channel", string(ch)))

	ticker := time.NewTicker(s.config.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return nil
			}
			fmt.Fprintf(w, "event: %s\n", e.Type)
			fmt.Fprintf(w, "data: %s\n\n", e.Data)
			w.Flush()

		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			w.Flush()

		case <-ctx.Done():
			return nil
		}
	}
}
