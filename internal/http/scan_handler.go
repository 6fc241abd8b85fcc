package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/ayouballali/mahali-pos/internal/camera"
	"github.com/ayouballali/mahali-pos/internal/scanner"
	"github.com/ayouballali/mahali-pos/internal/sell"
	"github.com/gorilla/websocket"
)

// Messages sent to the storefront besides camera control messages.
const (
	MsgFeedback = "feedback"
	MsgScanned  = "scanned"
	MsgNotFound = "not_found"
	MsgError    = "error"
	MsgState    = "state"
	MsgTorch    = "torch"
)

// Commands the storefront sends besides camera replies.
const (
	CmdSwitchFacing = "switch_facing"
	CmdToggleTorch  = "toggle_torch"
	CmdClose        = "close"
)

const (
	writeWait    = 10 * time.Second
	maxFrameSize = 4 << 20
)

type FeedbackMessage struct {
	Type    string `json:"type"`
	Tone    string `json:"tone"`
	Vibrate []int  `json:"vibrate"`
}

type ScanMessage struct {
	Type  string     `json:"type"`
	Event sell.Event `json:"event"`
}

type StateMessage struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

type TorchMessage struct {
	Type string `json:"type"`
	On   bool   `json:"on"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	// Blocking errors end scanning until the user acts on them.
	Blocking bool `json:"blocking"`
}

// ScanHandler runs one scan session per websocket connection. The browser owns
// the camera: it answers camera control messages and streams encoded frames as
// binary messages. Without a detector it answers 503 and the storefront falls back
// to manual entry.
type ScanHandler struct {
	register   *sell.Register
	detector   scanner.Detector
	samplerCfg camera.SamplerConfig
	sessionCfg scanner.SessionConfig
	upgrader   websocket.Upgrader
	log        *slog.Logger
}

func NewScanHandler(register *sell.Register, detector scanner.Detector, samplerCfg camera.SamplerConfig,
	sessionCfg scanner.SessionConfig, allowedOrigins []string, log *slog.Logger) *ScanHandler {
	if log == nil {
		log = slog.Default()
	}
	h := &ScanHandler{
		register:   register,
		detector:   detector,
		samplerCfg: samplerCfg,
		sessionCfg: sessionCfg,
		log:        log.With("component", "scan_ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	if len(allowedOrigins) > 0 {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
		}
	}
	return h
}

func (h *ScanHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.detector == nil {
		respondError(w, http.StatusServiceUnavailable, "scanner_unavailable", "barcode scanning is not available")
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	ws.SetReadLimit(maxFrameSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn := &scanConn{ws: ws}
	defer conn.close()

	devices := camera.NewRemoteDevices(conn)
	defer devices.Close()

	feedback := &socketFeedback{conn: conn}
	cfg := h.sessionCfg
	cfg.Accept = h.register.Validator().IsValid

	session := scanner.NewSession(
		camera.NewSampler(devices, h.samplerCfg, h.log),
		h.detector,
		cfg,
		func(ctx context.Context, d scanner.Detection) { h.onDetect(ctx, conn, feedback, d) },
		scanner.WithFeedback(feedback),
		scanner.WithLogger(h.log),
		scanner.WithStateListener(func(st scanner.State) {
			conn.send(StateMessage{Type: MsgState, State: st.String()})
		}),
	)
	log := h.log.With("session_id", session.ID())

	h.register.AttachSession(session)
	defer func() {
		h.register.DetachSession(session)
		session.Stop()
	}()

	commands := make(chan string, 8)
	readDone := make(chan error, 1)
	go func() {
		defer devices.Close()
		readDone <- conn.readLoop(devices, commands)
	}()

	if err := session.Start(ctx); err != nil {
		log.Warn("scan session did not start", "error", err)
		conn.send(errorMessage(err))
		return
	}

	for {
		select {
		case cmd := <-commands:
			h.command(ctx, conn, session, cmd)
		case err := <-readDone:
			if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("scan socket read failed", "error", err)
			}
			return
		case <-session.Done():
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *ScanHandler) onDetect(ctx context.Context, conn *scanConn, feedback scanner.Feedback, d scanner.Detection) {
	ev, err := h.register.HandleScan(ctx, d.Code)
	if err != nil {
		h.log.Error("scan lookup failed", "code", d.Code, "error", err)
		feedback.Failure(ctx)
		conn.send(ErrorMessage{Type: MsgError, Kind: "lookup_failed", Message: err.Error()})
		return
	}
	switch ev.Kind {
	case sell.EventScanned:
		conn.send(ScanMessage{Type: MsgScanned, Event: ev})
	case sell.EventNotFound:
		feedback.Failure(ctx)
		conn.send(ScanMessage{Type: MsgNotFound, Event: ev})
	}
}

func (h *ScanHandler) command(ctx context.Context, conn *scanConn, session *scanner.Session, cmd string) {
	switch cmd {
	case CmdSwitchFacing:
		if _, err := session.SwitchFacing(ctx); err != nil {
			conn.send(errorMessage(err))
		}
	case CmdToggleTorch:
		on, err := session.ToggleTorch(ctx)
		if err != nil {
			conn.send(errorMessage(err))
			return
		}
		conn.send(TorchMessage{Type: MsgTorch, On: on})
	}
}

func errorMessage(err error) ErrorMessage {
	kind := "internal"
	switch {
	case errors.Is(err, camera.ErrPermissionDenied):
		kind = camera.KindPermissionDenied
	case errors.Is(err, camera.ErrNoCameraFound):
		kind = camera.KindNoCamera
	case errors.Is(err, camera.ErrInsecureContext):
		kind = camera.KindInsecureContext
	case errors.Is(err, camera.ErrUnsupported):
		kind = camera.KindUnsupported
	case errors.Is(err, camera.ErrTorchUnsupported):
		kind = camera.KindTorchUnsupported
	case errors.Is(err, camera.ErrZoomUnsupported):
		kind = camera.KindZoomUnsupported
	case errors.Is(err, camera.ErrAcquireTimeout):
		kind = "acquire_timeout"
	case errors.Is(err, camera.ErrStreamClosed):
		kind = "stream_closed"
	}
	return ErrorMessage{Type: MsgError, Kind: kind, Message: err.Error(), Blocking: camera.IsBlocking(err)}
}

// scanConn serialises writes to the websocket; gorilla allows one concurrent writer.
type scanConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *scanConn) Signal(msg camera.ControlMessage) error {
	return c.write(msg)
}

// send writes v, dropping it if the peer is gone.
func (c *scanConn) send(v any) {
	_ = c.write(v)
}

func (c *scanConn) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteJSON(v)
}

func (c *scanConn) close() {
	c.mu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.mu.Unlock()
	c.ws.Close()
}

// readLoop feeds frames and camera replies to devices and forwards commands.
// It returns nil when the peer asks to close.
func (c *scanConn) readLoop(devices *camera.RemoteDevices, commands chan<- string) error {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		if mt == websocket.BinaryMessage {
			devices.PushFrame(data)
			continue
		}

		var msg camera.Reply
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case camera.MsgOpened, camera.MsgOpenFailed, camera.MsgApplied, camera.MsgApplyFailed:
			devices.HandleReply(msg)
		case CmdClose:
			return nil
		case CmdSwitchFacing, CmdToggleTorch:
			select {
			case commands <- msg.Type:
			default:
			}
		}
	}
}

type socketFeedback struct {
	conn *scanConn
}

func (f *socketFeedback) Success(context.Context) {
	f.conn.send(FeedbackMessage{Type: MsgFeedback, Tone: scanner.ToneSuccess, Vibrate: scanner.VibrateSuccess})
}

func (f *socketFeedback) Failure(context.Context) {
	f.conn.send(FeedbackMessage{Type: MsgFeedback, Tone: scanner.ToneFailure, Vibrate: scanner.VibrateFailure})
}
