// Package obs drives OBS Studio's websocket v5 interface as the external
// screen recorder.
package obs

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/splat-replay/splat-replay/internal/config"
	"github.com/splat-replay/splat-replay/internal/models"
	"github.com/splat-replay/splat-replay/internal/record"
)

// Websocket v5 opcodes.
const (
	opHello      = 0
	opIdentify   = 1
	opIdentified = 2
	opEvent      = 5
	opRequest    = 6
	opResponse   = 7
)

// eventSubscriptionOutputs limits the event feed to output state changes.
const eventSubscriptionOutputs = 1 << 6

// message is the v5 envelope.
type message struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type helloData struct {
	Authentication *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication"`
	RPCVersion int `json:"rpcVersion"`
}

type requestData struct {
	RequestType string         `json:"requestType"`
	RequestID   string         `json:"requestId"`
	RequestData map[string]any `json:"requestData,omitempty"`
}

type responseData struct {
	RequestType   string `json:"requestType"`
	RequestID     string `json:"requestId"`
	RequestStatus struct {
		Result  bool   `json:"result"`
		Code    int    `json:"code"`
		Comment string `json:"comment"`
	} `json:"requestStatus"`
	ResponseData map[string]any `json:"responseData"`
}

type eventData struct {
	EventType string         `json:"eventType"`
	EventData map[string]any `json:"eventData"`
}

// Client is the OBS recorder adapter. One websocket connection serves both
// the request/response channel and the event feed.
type Client struct {
	cfg    config.OBSConfig
	logger *slog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	pending  map[string]chan responseData
	callback func(record.RecorderStatus)
	done     chan struct{}

	lastOutputPath string
}

// NewClient builds the adapter; Setup establishes the connection.
func NewClient(cfg config.OBSConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "obs")),
		pending: make(map[string]chan responseData),
	}
}

// SetStatusCallback registers the observer for record state changes.
func (c *Client) SetStatusCallback(fn func(record.RecorderStatus)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callback = fn
}

// Setup dials OBS and completes the identify handshake.
func (c *Client) Setup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	u := url.URL{Scheme: "ws", Host: fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)}
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.Timeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return models.WrapError(models.KindDevice,
			fmt.Sprintf("connecting to OBS at %s", u.Host), err)
	}

	if err := c.identify(conn); err != nil {
		conn.Close()
		return err
	}

	c.conn = conn
	c.done = make(chan struct{})
	go c.readLoop(conn, c.done)
	c.logger.Info("connected to OBS", slog.String("addr", u.Host))
	return nil
}

func (c *Client) identify(conn *websocket.Conn) error {
	var hello message
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("reading hello: %w", err)
	}
	if hello.Op != opHello {
		return fmt.Errorf("expected hello, got op %d", hello.Op)
	}
	var h helloData
	if err := json.Unmarshal(hello.D, &h); err != nil {
		return fmt.Errorf("parsing hello: %w", err)
	}

	identify := map[string]any{
		"rpcVersion":         1,
		"eventSubscriptions": eventSubscriptionOutputs,
	}
	if h.Authentication != nil {
		if c.cfg.Password == "" {
			return models.NewError(models.KindAuthentication, "OBS requires a websocket password")
		}
		identify["authentication"] = authString(c.cfg.Password, h.Authentication.Salt, h.Authentication.Challenge)
	}
	if err := conn.WriteJSON(message{Op: opIdentify, D: mustMarshal(identify)}); err != nil {
		return fmt.Errorf("sending identify: %w", err)
	}

	var identified message
	if err := conn.ReadJSON(&identified); err != nil {
		return fmt.Errorf("reading identified: %w", err)
	}
	if identified.Op != opIdentified {
		return models.NewError(models.KindAuthentication, "OBS rejected the identify request")
	}
	return nil
}

// authString implements the v5 challenge: base64(sha256(base64(sha256(
// password+salt)) + challenge)).
func authString(password, salt, challenge string) string {
	secret := sha256.Sum256([]byte(password + salt))
	secretB64 := base64.StdEncoding.EncodeToString(secret[:])
	final := sha256.Sum256([]byte(secretB64 + challenge))
	return base64.StdEncoding.EncodeToString(final[:])
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// Teardown closes the connection and waits for the read loop to drain.
func (c *Client) Teardown(context.Context) error {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	err := conn.Close()
	<-done
	return err
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			c.failPending(err)
			return
		}
		switch msg.Op {
		case opResponse:
			var resp responseData
			if err := json.Unmarshal(msg.D, &resp); err != nil {
				continue
			}
			c.mu.Lock()
			ch := c.pending[resp.RequestID]
			delete(c.pending, resp.RequestID)
			c.mu.Unlock()
			if ch != nil {
				ch <- resp
			}
		case opEvent:
			var e eventData
			if err := json.Unmarshal(msg.D, &e); err != nil {
				continue
			}
			c.handleEvent(e)
		}
	}
}

func (c *Client) failPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
	c.logger.Debug("OBS connection closed", slog.Any("error", err))
}

// handleEvent maps RecordStateChanged onto the recorder status callback.
func (c *Client) handleEvent(e eventData) {
	if e.EventType != "RecordStateChanged" {
		return
	}
	state, _ := e.EventData["outputState"].(string)
	if path, ok := e.EventData["outputPath"].(string); ok && path != "" {
		c.mu.Lock()
		c.lastOutputPath = path
		c.mu.Unlock()
	}

	var status record.RecorderStatus
	switch state {
	case "OBS_WEBSOCKET_OUTPUT_STARTED":
		status = record.StatusStarted
	case "OBS_WEBSOCKET_OUTPUT_PAUSED":
		status = record.StatusPaused
	case "OBS_WEBSOCKET_OUTPUT_RESUMED":
		status = record.StatusResumed
	case "OBS_WEBSOCKET_OUTPUT_STOPPED":
		status = record.StatusStopped
	default:
		return
	}

	c.mu.Lock()
	callback := c.callback
	c.mu.Unlock()
	if callback != nil {
		callback(status)
	}
}

// request performs one request/response round trip.
func (c *Client) request(ctx context.Context, requestType string, data map[string]any) (map[string]any, error) {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil, models.NewError(models.KindDevice, "not connected to OBS")
	}
	id := uuid.NewString()
	ch := make(chan responseData, 1)
	c.pending[id] = ch
	req := message{Op: opRequest, D: mustMarshal(requestData{
		RequestType: requestType,
		RequestID:   id,
		RequestData: data,
	})}
	err := conn.WriteJSON(req)
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("sending %s: %w", requestType, err)
	}

	timeout := c.cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, models.NewError(models.KindDevice, requestType+" timed out")
	case resp, ok := <-ch:
		if !ok {
			return nil, models.NewError(models.KindDevice, "OBS connection lost")
		}
		if !resp.RequestStatus.Result {
			return nil, models.WrapError(models.KindRecording,
				fmt.Sprintf("%s failed (code %d)", requestType, resp.RequestStatus.Code),
				fmt.Errorf("%s", resp.RequestStatus.Comment))
		}
		return resp.ResponseData, nil
	}
}

// Start begins recording.
func (c *Client) Start(ctx context.Context) error {
	_, err := c.request(ctx, "StartRecord", nil)
	return err
}

// Pause pauses the running recording.
func (c *Client) Pause(ctx context.Context) error {
	_, err := c.request(ctx, "PauseRecord", nil)
	return err
}

// Resume continues a paused recording.
func (c *Client) Resume(ctx context.Context) error {
	_, err := c.request(ctx, "ResumeRecord", nil)
	return err
}

// Stop ends the recording and returns the written file, plus a subtitle
// sidecar if the recorder produced one next to it.
func (c *Client) Stop(ctx context.Context) (string, string, error) {
	resp, err := c.request(ctx, "StopRecord", nil)
	if err != nil {
		return "", "", err
	}
	videoPath, _ := resp["outputPath"].(string)
	if videoPath == "" {
		c.mu.Lock()
		videoPath = c.lastOutputPath
		c.mu.Unlock()
	}
	if videoPath == "" {
		return "", "", models.NewError(models.KindRecording, "OBS reported no output path")
	}

	subtitlePath := sidecarSubtitle(videoPath)
	return videoPath, subtitlePath, nil
}

func sidecarSubtitle(videoPath string) string {
	ext := strings.LastIndex(videoPath, ".")
	if ext < 0 {
		return ""
	}
	candidate := videoPath[:ext] + ".srt"
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

// Cancel stops the recording and discards the partial file.
func (c *Client) Cancel(ctx context.Context) error {
	videoPath, _, err := c.Stop(ctx)
	if err != nil {
		return err
	}
	if err := os.Remove(videoPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("discarding partial recording: %w", err)
	}
	c.logger.Info("partial recording discarded", slog.String("video", videoPath))
	return nil
}

// ListVideoDevices returns the names of OBS video capture inputs.
func (c *Client) ListVideoDevices(ctx context.Context) ([]string, error) {
	resp, err := c.request(ctx, "GetInputList", nil)
	if err != nil {
		return nil, err
	}
	inputs, _ := resp["inputs"].([]any)
	var devices []string
	for _, raw := range inputs {
		input, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		kind, _ := input["inputKind"].(string)
		if !isVideoCaptureKind(kind) {
			continue
		}
		if name, _ := input["inputName"].(string); name != "" {
			devices = append(devices, name)
		}
	}
	return devices, nil
}

// isVideoCaptureKind matches OBS's per-platform video capture input kinds.
func isVideoCaptureKind(kind string) bool {
	switch {
	case strings.HasPrefix(kind, "v4l2"),
		strings.HasPrefix(kind, "dshow"),
		strings.HasPrefix(kind, "av_capture"),
		strings.HasPrefix(kind, "game_capture"),
		strings.HasPrefix(kind, "screen_capture"):
		return true
	}
	return false
}
