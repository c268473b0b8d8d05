// Package api exposes the alert stream and the order command endpoints.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"admin-alerts/codec"
	"admin-alerts/domain"
	"admin-alerts/orders"
	"admin-alerts/storage"
)

const (
	postEventMaxSize = 16 << 10
	defaultHeartbeat = 25 * time.Second
)

// CommandService is implemented by orders.Service.
type CommandService interface {
	AnnounceNewOrder(ctx context.Context, id int64) (domain.Order, error)
	ChangeStatus(ctx context.Context, cmd domain.StatusChangeCommand, actor string) (bool, error)
}

type Authenticator interface {
	AdminFromAuthHeader(string) (string, error)
}

// StreamHub is implemented by broadcast.Hub.
type StreamHub interface {
	Subscribe() (string, <-chan []byte)
	Unsubscribe(id string)
	Len() int
}

type Options struct {
	Logger *log.Logger
	// WebhookToken guards the backend webhook when set.
	WebhookToken string
	// Heartbeat is the interval of keep-alive comments on idle streams.
	Heartbeat time.Duration
}

// Register wires up all routes on the provided Echo instance.
func Register(e *echo.Echo, svc CommandService, hub StreamHub, auth Authenticator, opts Options) {
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = defaultHeartbeat
	}
	e.GET("/stream", streamEvents(hub, auth, opts.Heartbeat, opts.Logger))
	e.POST("/api/events", postEvent(svc, auth, opts.Logger))
	e.POST("/admin-api/new-order-notification", newOrderNotification(svc, opts.WebhookToken))
	e.GET("/healthz", healthz(hub))
}

func healthz(hub StreamHub) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"status": "ok", "subscribers": hub.Len()})
	}
}

func streamEvents(hub StreamHub, auth Authenticator, heartbeat time.Duration, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if token := c.QueryParam("token"); authHeader == "" && token != "" {
			authHeader = bearerPrefix + token
		}
		admin, err := auth.AdminFromAuthHeader(authHeader)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}
		h := c.Response().Header()
		h.Set(echo.HeaderContentType, "text/event-stream")
		h.Set(echo.HeaderCacheControl, "no-cache")
		h.Set(echo.HeaderConnection, "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		c.Response().WriteHeader(http.StatusOK)

		id, frames := hub.Subscribe()
		defer hub.Unsubscribe(id)
		entry := logger.WithFields(log.Fields{"subscriber": id, "admin": admin})
		entry.Info("admin stream opened")
		defer entry.Info("admin stream closed")

		if _, err := io.WriteString(c.Response(), ": connected\n\n"); err != nil {
			return nil
		}
		flusher.Flush()

		ctx := c.Request().Context()
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case frame, ok := <-frames:
				if !ok {
					return nil
				}
				if _, err := c.Response().Write(frame); err != nil {
					entry.WithError(err).Debug("stream write failed")
					return nil
				}
			case <-ticker.C:
				if _, err := io.WriteString(c.Response(), ": ping\n\n"); err != nil {
					return nil
				}
			}
			flusher.Flush()
		}
	}
}

func postEvent(svc CommandService, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newCommandRequestMetrics(ctx, logger)
		c.SetRequest(c.Request().WithContext(spanCtx))
		ctx = spanCtx
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		admin, authErr := auth.AdminFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			return c.String(http.StatusUnauthorized, authErr.Error())
		}

		var env domain.Envelope
		dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, postEventMaxSize))
		if decErr := dec.Decode(&env); decErr != nil || env.Event == "" {
			metrics.SetErrorStage("decode")
			return c.String(http.StatusBadRequest, "invalid body")
		}

		switch env.Event {
		case domain.StatusUpdateRequest:
			cmd, decErr := codec.DecodeStatusChange(env.Data)
			if decErr != nil {
				metrics.SetErrorStage("decode")
				return c.String(http.StatusBadRequest, decErr.Error())
			}
			metrics.SetCommand(env.Event, cmd.OrderID, string(cmd.NewStatus))

			applyStart := time.Now()
			changed, applyErr := svc.ChangeStatus(ctx, cmd, admin)
			metrics.ObserveApply(time.Since(applyStart))
			metrics.SetChanged(changed)
			if applyErr != nil {
				metrics.SetErrorStage("apply")
				return errorResponse(c, applyErr)
			}
			return c.JSON(http.StatusAccepted, map[string]bool{"changed": changed})
		default:
			metrics.SetCommand(env.Event, 0, "")
			metrics.SetErrorStage("unknown_event")
			return c.String(http.StatusBadRequest, "unknown event")
		}
	}
}

type orderNotification struct {
	OrderID *int64 `json:"order_id"`
}

func newOrderNotification(svc CommandService, webhookToken string) echo.HandlerFunc {
	return func(c echo.Context) error {
		if webhookToken != "" {
			parts := strings.SplitN(c.Request().Header.Get(echo.HeaderAuthorization), " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] != webhookToken {
				return c.NoContent(http.StatusUnauthorized)
			}
		}
		var req orderNotification
		dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, postEventMaxSize))
		if err := dec.Decode(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid body"})
		}
		if req.OrderID == nil || *req.OrderID <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "order_id is required"})
		}
		o, err := svc.AnnounceNewOrder(c.Request().Context(), *req.OrderID)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"message": "notification sent", "order_id": o.ID})
	}
}

func errorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, orders.ErrInvalidRequest), errors.Is(err, codec.ErrMalformed):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
