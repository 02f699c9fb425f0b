package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"weekcal/internal/config"
	"weekcal/internal/hitindex"
	"weekcal/internal/interact"
	"weekcal/internal/layout"
	appLog "weekcal/internal/log"
	"weekcal/internal/model"
	"weekcal/internal/preview"
	"weekcal/internal/source"
	"weekcal/internal/zoom"
)

// maxNotices bounds the notice backlog kept for /api/notices.
const maxNotices = 64

// Server exposes a Session over HTTP. The session is not safe for
// concurrent use, so every handler touching it holds mu.
type Server struct {
	mu      sync.Mutex
	session *interact.Session
	auth    *config.BasicAuthConfig
	now     func() time.Time
	mux     *http.ServeMux

	noticeMu sync.Mutex
	notices  []interact.Notice
}

// NewServer wraps session. auth may be nil. The session's notice handler
// should be wired to Server.RecordNotice by the caller.
func NewServer(session *interact.Session, auth *config.BasicAuthConfig) *Server {
	s := &Server{
		session: session,
		auth:    auth,
		now:     time.Now,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Do runs fn with exclusive access to the session. Hosts use it for
// background work such as event refreshes and ticking.
func (s *Server) Do(fn func(*interact.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.session)
}

// Swap replaces the served session, e.g. after a configuration reload.
func (s *Server) Swap(session *interact.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
}

// RecordNotice appends a session notice to the backlog. It is safe to call
// from inside a session operation.
func (s *Server) RecordNotice(n interact.Notice) {
	s.noticeMu.Lock()
	defer s.noticeMu.Unlock()
	s.notices = append(s.notices, n)
	if len(s.notices) > maxNotices {
		s.notices = append([]interact.Notice(nil), s.notices[len(s.notices)-maxNotices:]...)
	}
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured. Empty
// credentials disable it.
func (s *Server) basicAuthEnabled() bool {
	return s.auth != nil && s.auth.Username != "" && s.auth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.auth.Username
	password := s.auth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="weekcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve runs an HTTP server on listen until ctx is canceled, then shuts it
// down gracefully.
func (s *Server) Serve(ctx context.Context, listen string) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+listen, "basic_auth", s.basicAuthEnabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/layout", s.handleLayout)
	s.mux.HandleFunc("GET /api/hit", s.handleHit)
	s.mux.HandleFunc("POST /api/hit", s.handlePointer)
	s.mux.HandleFunc("POST /api/zoom", s.handleZoom)
	s.mux.HandleFunc("GET /api/frame", s.handleFrame)
	s.mux.HandleFunc("PUT /api/events", s.handleEvents)
	s.mux.HandleFunc("POST /api/viewport", s.handleViewport)
	s.mux.HandleFunc("GET /api/notices", s.handleNotices)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleLayout(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	l := s.session.Layout()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, l)
}

// handleHit answers GET /api/hit?x=..&y=.. without changing state.
func (s *Server) handleHit(w http.ResponseWriter, r *http.Request) {
	p, err := pointFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	res := s.session.Hit(p)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, res)
}

// handlePointer drives POST /api/hit?x=..&y=..&action=move|click|leave.
func (s *Server) handlePointer(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	if action == "leave" {
		s.mu.Lock()
		s.session.PointerLeave()
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, hitindex.Result{Type: hitindex.None, Slot: -1})
		return
	}
	p, err := pointFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch action {
	case "", "move":
		writeJSON(w, http.StatusOK, s.session.PointerMove(p))
	case "click":
		res, err := s.session.Click(p, s.now())
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", action))
	}
}

type zoomRequest struct {
	// Day zooms into a weekday ("tue", "tuesday").
	Day string `json:"day,omitempty"`
	// Reset returns to the normal view.
	Reset bool `json:"reset,omitempty"`
	// Step moves the zoomed day by -1 or +1.
	Step int `json:"step,omitempty"`
}

type zoomResponse struct {
	ZoomedDay   string   `json:"zoomed_day,omitempty"`
	VisibleDays []string `json:"visible_days"`
	Animating   bool     `json:"animating"`
}

func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	var req zoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var err error
	switch {
	case req.Reset:
		err = s.session.ResetZoom(now)
	case req.Step < 0:
		_, err = s.session.Prev(now)
	case req.Step > 0:
		_, err = s.session.Next(now)
	case req.Day != "":
		var day model.Weekday
		day, err = model.ParseWeekday(req.Day)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		err = s.session.ZoomTo(day, now)
	default:
		writeError(w, http.StatusBadRequest, "one of day, reset or step is required")
		return
	}
	if err != nil {
		writeFailure(w, err)
		return
	}

	resp := zoomResponse{Animating: s.session.Animating()}
	for _, d := range s.session.VisibleDays() {
		resp.VisibleDays = append(resp.VisibleDays, d.String())
	}
	if d, ok := s.session.ZoomedDay(); ok {
		resp.ZoomedDay = d.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

type frameResponse struct {
	Animating bool              `json:"animating"`
	Events    []zoom.FrameEvent `json:"events"`
}

// handleFrame returns what to draw now. Animations are advanced by the
// host's ticker, never by polling.
func (s *Server) handleFrame(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	moving := s.session.Animating()
	frame := s.session.Frame()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, frameResponse{Animating: moving, Events: frame})
}

// handleEvents replaces the event set with a JSON list of event configs.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var cfgs []config.EventConfig
	if err := json.NewDecoder(r.Body).Decode(&cfgs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	events, err := source.StaticEvents(cfgs)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.mu.Lock()
	err = s.session.SetEvents(events)
	s.mu.Unlock()
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"events": len(events)})
}

type viewportRequest struct {
	Width            float64 `json:"width"`
	Height           float64 `json:"height"`
	DevicePixelRatio float64 `json:"device_pixel_ratio"`
	Orientation      string  `json:"orientation,omitempty"`
	ScrollX          float64 `json:"scroll_x"`
	ScrollY          float64 `json:"scroll_y"`
}

func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	var req viewportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var orientation *layout.Orientation
	if req.Orientation != "" {
		o, err := layout.ParseOrientation(req.Orientation)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		orientation = &o
	}
	if err := layout.ValidateViewport(req.Width, req.Height, req.DevicePixelRatio); err != nil {
		writeFailure(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.session.Layout().Orientation
	if orientation != nil {
		if err := s.session.SetOrientation(*orientation); err != nil {
			writeFailure(w, err)
			return
		}
	}
	if err := s.session.Resize(req.Width, req.Height, req.DevicePixelRatio); err != nil {
		if orientation != nil {
			if rerr := s.session.SetOrientation(prev); rerr != nil {
				appLog.Error("failed to restore orientation", rerr)
			}
		}
		writeFailure(w, err)
		return
	}
	s.session.SetScroll(layout.Point{X: req.ScrollX, Y: req.ScrollY})
	writeJSON(w, http.StatusOK, s.session.Layout())
}

type noticeDTO struct {
	Kind     interact.NoticeKind `json:"kind"`
	Day      string              `json:"day"`
	EventID  string              `json:"event_id,omitempty"`
	AnchorID string              `json:"anchor_id,omitempty"`
}

// handleNotices drains the notice backlog.
func (s *Server) handleNotices(w http.ResponseWriter, _ *http.Request) {
	s.noticeMu.Lock()
	pending := s.notices
	s.notices = nil
	s.noticeMu.Unlock()

	out := make([]noticeDTO, 0, len(pending))
	for _, n := range pending {
		dto := noticeDTO{Kind: n.Kind, Day: n.Day.String(), AnchorID: n.AnchorID}
		if n.Event != nil {
			dto.EventID = n.Event.ID
		}
		out = append(out, dto)
	}
	writeJSON(w, http.StatusOK, out)
}

// handlePreview renders the current frame as PNG.
func (s *Server) handlePreview(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	img := preview.Render(s.session.Layout(), s.session.Frame(), preview.DefaultOptions())
	s.mu.Unlock()

	var buf bytes.Buffer
	if err := preview.EncodePNG(&buf, img); err != nil {
		appLog.Error("preview encode failed", err)
		writeError(w, http.StatusInternalServerError, "failed to render preview")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func pointFromQuery(r *http.Request) (layout.Point, error) {
	q := r.URL.Query()
	x, err := strconv.ParseFloat(q.Get("x"), 64)
	if err != nil {
		return layout.Point{}, fmt.Errorf("invalid x %q", q.Get("x"))
	}
	y, err := strconv.ParseFloat(q.Get("y"), 64)
	if err != nil {
		return layout.Point{}, fmt.Errorf("invalid y %q", q.Get("y"))
	}
	return layout.Point{X: x, Y: y}, nil
}

type fieldDTO struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type validationResponse struct {
	Error  string     `json:"error"`
	Fields []fieldDTO `json:"fields"`
}

// writeFailure maps validation errors to 422 with the offending fields and
// anything else to 500.
func writeFailure(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		resp := validationResponse{Error: "validation failed"}
		for _, f := range verr.Fields {
			resp.Fields = append(resp.Fields, fieldDTO{Field: f.Field, Reason: f.Reason})
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}
	appLog.Error("request failed", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
