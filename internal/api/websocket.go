package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	gateway "github.com/newplayman/bingx-dashboard/internal/exchange"
	"github.com/newplayman/bingx-dashboard/internal/metrics"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
)

func newUpgrader(origins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(origins),
	}
}

// originChecker 未配置 cors_origins 时放行所有来源；配置后只允许同源和列表内的 Origin
func originChecker(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 {
		return func(r *http.Request) bool { return true }
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}

// wsMessage 推送消息：type=overview 时 data 为总览，type=error 时为错误描述
type wsMessage struct {
	Type  string `json:"type"`
	Time  int64  `json:"time"`
	Data  any    `json:"data,omitempty"`
	Error any    `json:"error,omitempty"`
}

// handleOverviewWS 连接建立后立即推一次总览，之后按间隔推送，直到客户端断开
func (s *Server) handleOverviewWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket 升级失败")
		return
	}
	defer conn.Close()

	metrics.WSClients.Inc()
	defer metrics.WSClients.Dec()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pongWait := s.pongWait
	// 读循环只用来感知断开；浏览器只收不发，靠 ping/pong 续期
	go func() {
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
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		}
	}()

	ticker := time.NewTicker(s.cfg.OverviewPush)
	defer ticker.Stop()
	ping := time.NewTicker(pongWait * 9 / 10)
	defer ping.Stop()

	// 所有写操作都在这个 goroutine
	if err := s.pushOverview(ctx, conn); err != nil {
		log.Debug().Err(err).Msg("websocket 推送结束")
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				log.Debug().Err(err).Msg("websocket ping 失败")
				return
			}
		case <-ticker.C:
			if err := s.pushOverview(ctx, conn); err != nil {
				log.Debug().Err(err).Msg("websocket 推送结束")
				return
			}
		}
	}
}

// pushOverview 只有写失败才返回错误；拉取失败以 error 消息推给客户端
func (s *Server) pushOverview(ctx context.Context, conn *websocket.Conn) error {
	msg := wsMessage{Time: time.Now().UnixMilli()}
	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.OverviewPush+10*time.Second)
	ov, err := s.svc.Overview(reqCtx)
	cancel()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		msg.Type = "error"
		msg.Error = map[string]any{
			"kind":    gateway.ErrorKind(err),
			"code":    gateway.ErrorCode(err),
			"message": err.Error(),
		}
	} else {
		msg.Type = "overview"
		msg.Data = ov
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}
