package controller

import (
	"assessment_engine/internal/service"
	"assessment_engine/internal/util"
	"assessment_engine/pkg/logger"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	tickPeriod     = time.Second
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ClockFrame 倒计时推送帧
type ClockFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type clockState struct {
	Position         int `json:"position"`
	QuestionIndex    int `json:"question_index"`
	RemainingSeconds int `json:"remaining_seconds"`
}

type clockAction struct {
	Kind          service.TimingActionKind `json:"kind"`
	QuestionIndex int                      `json:"question_index"`
	Next          *clockState              `json:"next,omitempty"`
}

type ClockController struct {
	Service *service.AssessmentService
	now     func() time.Time
}

func NewClockController(svc *service.AssessmentService) *ClockController {
	return &ClockController{Service: svc, now: time.Now}
}

// HandleClock godoc
// @Summary 作答倒计时
// @Description WebSocket 推送 tick / force_advance / force_submit 帧，接受 advance / previous 指令。仅作提示，服务端不会自动交卷
// @Tags 测评
// @Security ApiKeyAuth
// @Param id path string true "作答ID"
// @Param token query string false "JWT Token"
// @Success 101 {string} string "Switching Protocols"
// @Router /api/attempts/{id}/clock [get]
func (ctrl *ClockController) HandleClock(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		util.Unauthorized(c)
		return
	}
	clock, err := ctrl.Service.AttemptClock(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		util.Fail(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err), zap.Uint("userId", caller.UserID))
		return
	}

	commands := make(chan string, 8)
	go readCommands(conn, commands, caller.UserID)
	ctrl.run(conn, clock, commands)
}

// readCommands 读取客户端指令，连接断开时关闭 commands
func readCommands(conn *websocket.Conn, commands chan<- string, userID uint) {
	defer close(commands)
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Warn("Clock socket unexpected close", zap.Error(err), zap.Uint("userId", userID))
			}
			return
		}
		var frame ClockFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			continue
		}
		select {
		case commands <- frame.Type:
		default:
		}
	}
}

// run 是唯一的写协程，也是唯一操作 TimingSession 的协程
func (ctrl *ClockController) run(conn *websocket.Conn, clock *service.ClockSession, commands <-chan string) {
	ticker := time.NewTicker(tickPeriod)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
		conn.Close()
	}()

	session := clock.Session
	if err := ctrl.write(conn, ClockFrame{Type: "tick", Data: ctrl.state(clock)}); err != nil {
		return
	}

	for {
		select {
		case cmd, ok := <-commands:
			if !ok {
				return
			}
			var frame ClockFrame
			switch cmd {
			case "advance":
				action, err := session.Advance(ctrl.now())
				if err != nil {
					frame = ClockFrame{Type: "error", Data: err.Error()}
				} else {
					frame = ctrl.actionFrame(clock, action)
				}
			case "previous":
				if _, err := session.Previous(); err != nil {
					frame = ClockFrame{Type: "error", Data: err.Error()}
				} else {
					frame = ClockFrame{Type: "tick", Data: ctrl.state(clock)}
				}
			default:
				frame = ClockFrame{Type: "error", Data: "unknown command"}
			}
			if err := ctrl.write(conn, frame); err != nil {
				return
			}
		case <-ticker.C:
			action := session.Tick(ctrl.now())
			frame := ClockFrame{Type: "tick", Data: ctrl.state(clock)}
			if action.Kind != service.ActionNone {
				frame = ctrl.actionFrame(clock, action)
			}
			if err := ctrl.write(conn, frame); err != nil {
				return
			}
			if session.Done() {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ctrl *ClockController) state(clock *service.ClockSession) *clockState {
	pos := clock.Session.Current()
	return &clockState{
		Position:         pos,
		QuestionIndex:    clock.QuestionIndex(pos),
		RemainingSeconds: int((clock.Session.Remaining(ctrl.now()) + time.Second - 1) / time.Second),
	}
}

func (ctrl *ClockController) actionFrame(clock *service.ClockSession, action service.TimingAction) ClockFrame {
	a := clockAction{Kind: action.Kind, QuestionIndex: clock.QuestionIndex(action.Index)}
	if action.Kind == service.ActionAdvance || action.Kind == service.ActionForceAdvance {
		a.Next = ctrl.state(clock)
	}
	return ClockFrame{Type: string(action.Kind), Data: a}
}

func (ctrl *ClockController) write(conn *websocket.Conn, frame ClockFrame) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(frame)
}
