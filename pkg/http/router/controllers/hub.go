package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/lintang-b-s/eventradar/pkg/discovery"
	"github.com/lintang-b-s/eventradar/pkg/geo"
	"go.uber.org/zap"
)

var errMalformedMessage = errors.New("malformed message")

// User is one websocket viewer with its own discovery session.
type User struct {
	io   sync.Mutex
	conn io.ReadWriteCloser

	id       uint
	hub      *Hub
	filters  []string
	limit    int
	location *discovery.CachedLocation
}

// readRequest blocks until the next data frame. Control frames are answered and skipped,
// a nil request with a nil error means nothing to process.
func (u *User) readRequest() (*wsMessage, error) {
	h, r, err := wsutil.NextReader(u.conn, ws.StateServerSide)
	if err != nil {
		return nil, err
	}
	if h.OpCode.IsControl() {
		u.io.Lock()
		defer u.io.Unlock()
		return nil, wsutil.ControlFrameHandler(u.conn, ws.StateServerSide)(h, r)
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	req := &wsMessage{}
	if err := json.Unmarshal(payload, req); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedMessage, err)
	}
	return req, nil
}

func (u *User) write(x interface{}) error {
	w := wsutil.NewWriter(u.conn, ws.StateServerSide, ws.OpText)
	encoder := json.NewEncoder(w)

	u.io.Lock()
	defer u.io.Unlock()

	if err := encoder.Encode(x); err != nil {
		return err
	}

	return w.Flush()
}

func (u *User) writeError(status int, message string) error {
	return u.write(envelope{"error": map[string]string{
		"code":    http.StatusText(status),
		"message": message,
	}})
}

/*
Run serves the user until the socket closes or ctx is done.

Events are resolved once when the connection opens; every message afterwards only moves the
viewer's origin and gets the new nearby list back. A reader goroutine watches the socket so that
a disconnect cancels geocoding still in flight.
*/
func (u *User) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	msgs := make(chan *wsMessage)
	readErr := make(chan error, 1)
	go func() {
		defer cancel()
		for {
			req, err := u.readRequest()
			if errors.Is(err, errMalformedMessage) {
				if werr := u.writeError(http.StatusBadRequest, err.Error()); werr != nil {
					readErr <- werr
					return
				}
				continue
			}
			if err != nil {
				readErr <- err
				return
			}
			if req == nil {
				continue
			}
			select {
			case msgs <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	session, err := u.hub.service.OpenSession(ctx, u.filters)
	if err != nil {
		if ctx.Err() != nil {
			return closeError(readErr)
		}
		_ = u.writeError(statusOf(err), err.Error())
		return err
	}
	defer session.Close()

	if err := u.write(envelope{"data": NewNearbyResponse(u.hub.service.Snapshot(session, u.limit))}); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return closeError(readErr)
		case req := <-msgs:
			if err := u.handle(ctx, session, req); err != nil {
				return err
			}
		}
	}
}

func (u *User) handle(ctx context.Context, session *discovery.Session, req *wsMessage) error {
	if err := validateStruct(req); err != nil {
		return u.writeError(http.StatusBadRequest, err.Error())
	}

	switch {
	case (req.Lat == nil) != (req.Lon == nil):
		return u.writeError(http.StatusBadRequest, "lat and lon must be given together")
	case req.Lat != nil:
		coord := geo.NewCoordinate(*req.Lat, *req.Lon)
		if err := session.Locate(ctx, discovery.NewStaticLocation(&coord)); err != nil {
			return u.writeError(http.StatusBadRequest, err.Error())
		}
		u.location.Put(coord)
	case req.Error != "":
		session.SetLocationError(errors.New(req.Error))
	default:
		// refresh: reuse the last reported position while it is fresh enough
		_ = session.Locate(ctx, u.location)
	}

	limit := u.limit
	if req.Limit > 0 {
		limit = req.Limit
	}
	return u.write(envelope{"data": NewNearbyResponse(u.hub.service.Snapshot(session, limit))})
}

// closeError turns the reader's exit reason into Run's result. A normal close is not an error.
func closeError(readErr <-chan error) error {
	select {
	case err := <-readErr:
		var closed wsutil.ClosedError
		if errors.As(err, &closed) || errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("read websocket frame: %w", err)
	default:
		return nil
	}
}

// Hub tracks the open websocket users so they can be closed on shutdown.
type Hub struct {
	mu      sync.RWMutex
	seq     uint
	ns      map[uint]*User
	service DiscoveryService
	log     *zap.Logger

	locationTimeout time.Duration
	locationMaxAge  time.Duration
}

func NewHub(service DiscoveryService, locationTimeout, locationMaxAge time.Duration, log *zap.Logger) *Hub {
	return &Hub{
		ns:              make(map[uint]*User),
		service:         service,
		log:             log,
		locationTimeout: locationTimeout,
		locationMaxAge:  locationMaxAge,
	}
}

func (h *Hub) Register(conn io.ReadWriteCloser, filters []string, limit int) *User {
	if limit <= 0 {
		limit = discovery.NearbyLimit
	}
	user := &User{
		hub:      h,
		conn:     conn,
		filters:  filters,
		limit:    limit,
		location: discovery.NewCachedLocation(nil, h.locationTimeout, h.locationMaxAge),
	}

	h.mu.Lock()
	user.id = h.seq
	h.ns[user.id] = user
	h.seq++
	h.mu.Unlock()

	return user
}

func (h *Hub) Remove(user *User) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.ns[user.id]; !ok {
		return
	}
	delete(h.ns, user.id)
	if err := user.conn.Close(); err != nil {
		h.log.Debug("close websocket connection", zap.Uint("user", user.id), zap.Error(err))
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.ns)
}

func (h *Hub) RemoveAllUser() {
	h.mu.RLock()
	users := make([]*User, 0, len(h.ns))
	for _, user := range h.ns {
		users = append(users, user)
	}
	h.mu.RUnlock()

	for _, user := range users {
		h.Remove(user)
	}
}
