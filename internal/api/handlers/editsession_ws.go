package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/platformbuilds/dashboard-core/internal/api/middleware"
	"github.com/platformbuilds/dashboard-core/internal/config"
	"github.com/platformbuilds/dashboard-core/internal/controller"
	"github.com/platformbuilds/dashboard-core/internal/filter"
	"github.com/platformbuilds/dashboard-core/internal/layout"
	"github.com/platformbuilds/dashboard-core/internal/models"
	"github.com/platformbuilds/dashboard-core/internal/monitoring"
	"github.com/platformbuilds/dashboard-core/internal/repo"
	"github.com/platformbuilds/dashboard-core/internal/transform"
	"github.com/platformbuilds/dashboard-core/pkg/logger"
)

// Edit session message types.
const (
	MsgLayout      = "layout"
	MsgAdd         = "add"
	MsgRemove      = "remove"
	MsgRename      = "rename"
	MsgFilter      = "filter"
	MsgReset       = "reset"
	MsgToggleEdit  = "toggle_edit"
	MsgTogglePanel = "toggle_panel"
	MsgSave        = "save"

	ReplyState     = "state"
	ReplyError     = "error"
	ReplyPersisted = "persisted"
)

const (
	defaultPingInterval = 30 * time.Second
	writeWait           = 10 * time.Second
	flushTimeout        = 5 * time.Second
	sendBuffer          = 32
)

// EditMessage is one client action. Fields are read according to Type.
type EditMessage struct {
	Type       string              `json:"type"`
	Layout     []models.LayoutCell `json:"layout,omitempty"`
	TemplateID string              `json:"templateId,omitempty"`
	Placement  *layout.Placement   `json:"placement,omitempty"`
	WidgetID   string              `json:"widgetId,omitempty"`
	Name       string              `json:"name,omitempty"`
	Filter     *filter.Spec        `json:"filter,omitempty"`
}

// EditReply answers every message with the new state or the error. The
// session also pushes persisted after a background layout write.
type EditReply struct {
	Type  string           `json:"type"`
	View  *controller.View `json:"view,omitempty"`
	Error string           `json:"error,omitempty"`
	Code  string           `json:"code,omitempty"`
}

type EditSessionConfig struct {
	WebSocket      config.WebSocketConfig
	AllowedOrigins []string
	CoalesceWindow time.Duration
}

// EditSessionHandler upgrades GET /dashboards/:id/edit to a websocket
// that keeps one working copy of the dashboard for the connection's
// lifetime. Messages are applied strictly in receive order.
type EditSessionHandler struct {
	repo      repo.DashboardRepo
	templates controller.TemplateSource
	locks     *DashboardLocks
	logger    logger.Logger
	upgrader  websocket.Upgrader
	window    time.Duration
	ping      time.Duration
	maxMsg    int64
}

func NewEditSessionHandler(r repo.DashboardRepo, t controller.TemplateSource, locks *DashboardLocks, cfg EditSessionConfig, l logger.Logger) *EditSessionHandler {
	ping := time.Duration(cfg.WebSocket.PingInterval) * time.Second
	if ping <= 0 {
		ping = defaultPingInterval
	}
	origins := cfg.AllowedOrigins
	return &EditSessionHandler{
		repo:      r,
		templates: t,
		locks:     locks,
		logger:    l,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
			WriteBufferSize: cfg.WebSocket.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.IsOriginAllowed(origin, origins)
			},
		},
		window: cfg.CoalesceWindow,
		ping:   ping,
		maxMsg: int64(cfg.WebSocket.MaxMessageSize),
	}
}

// HandleEditSession - GET /api/v1/dashboards/:id/edit (websocket)
func (h *EditSessionHandler) HandleEditSession(c *gin.Context) {
	id := c.Param("id")
	c.Set("dashboard_id", id)
	log := h.logger.With("dashboard_id", id)

	ctrl := controller.New(h.repo, h.templates,
		controller.WithLogger(log),
		controller.WithNotifier(func(e controller.Event) {
			log.Debug("Edit session event", "kind", e.Kind, "widget_id", e.WidgetID)
		}),
	)

	// open before upgrading so failures still get an HTTP status
	unlock := h.locks.Lock(id)
	err := ctrl.Open(c.Request.Context(), id)
	unlock()
	if err != nil {
		_ = c.Error(err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s := &editSession{
		id:     id,
		conn:   conn,
		ctrl:   ctrl,
		locks:  h.locks,
		logger: log,
		ping:   h.ping,
		send:   make(chan EditReply, sendBuffer),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.lc = controller.NewLayoutCoalescer(h.window, ctrl.ApplyLayoutChange, s.persist, s.persistFailed)
	if h.maxMsg > 0 {
		conn.SetReadLimit(h.maxMsg)
	}

	monitoring.EditSessionOpened()
	defer monitoring.EditSessionClosed()
	log.Info("Edit session opened")

	go s.writeLoop()
	s.reply(s.state())
	s.readLoop(c.Request.Context())
	s.close(c.Request.Context())
	log.Info("Edit session closed")
}

type editSession struct {
	id     string
	conn   *websocket.Conn
	ctrl   *controller.Controller
	lc     *controller.LayoutCoalescer
	locks  *DashboardLocks
	logger logger.Logger
	ping   time.Duration

	send chan EditReply
	quit chan struct{} // closed to stop the writer
	done chan struct{} // closed when the writer has exited
}

func (s *editSession) readLoop(ctx context.Context) {
	pongWait := 2 * s.ping
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("Edit session read failed", "error", err)
			}
			return
		}

		var msg EditMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.reply(errorReply(middleware.BadRequest(err)))
			continue
		}
		s.reply(s.handle(ctx, msg))
	}
}

// handle applies one message under the dashboard lock.
func (s *editSession) handle(ctx context.Context, msg EditMessage) EditReply {
	unlock := s.locks.Lock(s.id)
	defer unlock()

	if err := s.apply(ctx, msg); err != nil {
		return errorReply(err)
	}
	return s.state()
}

func (s *editSession) apply(ctx context.Context, msg EditMessage) error {
	switch msg.Type {
	case MsgLayout:
		return s.lc.Submit(msg.Layout)
	case MsgAdd:
		_, _, err := s.ctrl.AddChartWidgetAt(msg.TemplateID, msg.Placement)
		return err
	case MsgRemove:
		return s.ctrl.DeleteChartWidget(msg.WidgetID)
	case MsgRename:
		return s.ctrl.Rename(msg.Name)
	case MsgFilter:
		spec := filter.Spec{}
		if msg.Filter != nil {
			spec = *msg.Filter
		}
		order, err := transform.ParseSortOrder(string(spec.SortOrder))
		if err != nil {
			return middleware.BadRequest(err)
		}
		spec.SortOrder = order
		_, err = s.ctrl.ApplyFilter(msg.WidgetID, spec)
		return err
	case MsgReset:
		_, err := s.ctrl.ResetFilter(msg.WidgetID)
		return err
	case MsgToggleEdit:
		_, err := s.ctrl.ToggleEditMode()
		return err
	case MsgTogglePanel:
		_, err := s.ctrl.ToggleFilterPanel(msg.WidgetID)
		return err
	case MsgSave:
		// the full save covers any pending layout write
		s.lc.Cancel()
		return s.ctrl.Save(ctx)
	default:
		return middleware.BadRequest(fmt.Errorf("unknown message type %q", msg.Type))
	}
}

// persist is the coalesced layout write. It runs off the read loop and
// takes the dashboard lock itself.
func (s *editSession) persist(ctx context.Context) error {
	unlock := s.locks.Lock(s.id)
	defer unlock()

	if err := s.ctrl.Persist(ctx); err != nil {
		return err
	}
	view := s.ctrl.View()
	s.reply(EditReply{Type: ReplyPersisted, View: &view})
	return nil
}

func (s *editSession) persistFailed(err error) {
	s.logger.Error("Coalesced layout write failed", "error", err)
	s.reply(errorReply(err))
}

func (s *editSession) state() EditReply {
	view := s.ctrl.View()
	return EditReply{Type: ReplyState, View: &view}
}

func errorReply(err error) EditReply {
	_, code := middleware.Classify(err)
	return EditReply{Type: ReplyError, Error: err.Error(), Code: code}
}

// reply queues r for the writer. Replies after the writer has exited are
// dropped.
func (s *editSession) reply(r EditReply) {
	select {
	case s.send <- r:
	case <-s.done:
	}
}

func (s *editSession) writeLoop() {
	defer close(s.done)
	ticker := time.NewTicker(s.ping)
	defer ticker.Stop()

	for {
		select {
		case r := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(r); err != nil {
				s.logger.Warn("Edit session write failed", "error", err)
				// unblock the reader
				_ = s.conn.Close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = s.conn.Close()
				return
			}
		case <-s.quit:
			return
		}
	}
}

// close writes any pending layout change, then stops the writer.
func (s *editSession) close(ctx context.Context) {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()
	if err := s.lc.Flush(flushCtx); err != nil {
		s.logger.Error("Failed to write pending layout on close", "error", err)
	}
	s.lc.Stop()
	close(s.quit)
	<-s.done
}
