package api

import (
	"context"
	"net/http"
	"time"

	models "MacroPulse/internal/domain/models"
	domrepo "MacroPulse/internal/domain/repository"
	"MacroPulse/internal/service/metrics"
	"MacroPulse/internal/usecase"
	xhttp "MacroPulse/pkg/http"
	xlogger "MacroPulse/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 90 * time.Second
	pingPeriod = 30 * time.Second
)

// StreamMessage is one frame pushed to overlay stream clients.
type StreamMessage struct {
	Type   string          `json:"type"`
	Ticker string          `json:"ticker"`
	Data   *models.Overlay `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// OverlayStream pushes overlay snapshots over a websocket at a fixed interval.
type OverlayStream struct {
	overlay  *usecase.OverlayUseCase
	upgrader websocket.Upgrader
	l        *xlogger.Logger
}

func NewOverlayStream(l *xlogger.Logger, o *usecase.OverlayUseCase) *OverlayStream {
	metrics.Register()
	if l == nil {
		l = xlogger.Nop()
	}
	return &OverlayStream{
		overlay: o,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		l: l,
	}
}

func (s *OverlayStream) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/overlay", s.Serve)
}

// Serve upgrades the connection and pushes a snapshot immediately and then
// every interval seconds until the client goes away.
func (s *OverlayStream) Serve(c echo.Context) error {
	req := &models.StreamRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already replied
		s.l.Warn("ws upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	metrics.StreamClients.Inc()
	defer metrics.StreamClients.Dec()

	l := s.l.With(xlogger.String("ticker", req.Ticker), xlogger.String("remote", c.RealIP()))
	l.Info("overlay stream opened", xlogger.Int("interval_s", req.Interval))

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	go readPump(conn, cancel)

	period := domrepo.NormalizePeriod(req.Period)
	push := time.NewTicker(time.Duration(req.Interval) * time.Second)
	defer push.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := s.push(ctx, conn, req.Ticker, period); err != nil {
		l.Warn("overlay stream write failed", xlogger.Error(err))
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			l.Info("overlay stream closed")
			return nil
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				l.Warn("overlay stream ping failed", xlogger.Error(err))
				return nil
			}
		case <-push.C:
			if err := s.push(ctx, conn, req.Ticker, period); err != nil {
				l.Warn("overlay stream write failed", xlogger.Error(err))
				return nil
			}
		}
	}
}

func (s *OverlayStream) push(ctx context.Context, conn *websocket.Conn, ticker string, period domrepo.Period) error {
	msg := StreamMessage{Type: "overlay", Ticker: ticker}
	o, err := s.overlay.Overlay(ctx, ticker, period)
	if err != nil {
		metrics.APIErrors.WithLabelValues("ws_overlay").Inc()
		msg.Type = "error"
		msg.Error = toAppError(err).Message
	} else {
		msg.Data = &o
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

// readPump drains client frames so control messages are processed and
// cancels the stream once the peer disconnects.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
