// Package websocket pushes design-saved events to socket.io clients that
// watch a design, such as an order page showing the product preview.
package websocket

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

const roomPrefix = "design:"

type ackInvoker func(err error, payload map[string]any)

// Notifier owns the socket.io server and the per-design watcher counts.
type Notifier struct {
	srv *socketio.Server

	mu       sync.RWMutex
	watchers map[string]int
}

func designRoom(designID string) socketio.Room {
	return socketio.Room(roomPrefix + designID)
}

func NewNotifier() *Notifier {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(1000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	localhostOrigin := regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\[::1\])(:\d+)?$`)
	opts.SetCors(&types.Cors{
		Origin:      []any{localhostOrigin},
		Credentials: true,
	})

	n := &Notifier{
		srv:      socketio.NewServer(nil, opts),
		watchers: make(map[string]int),
	}

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	n.srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		n.handleConnection(socket)
	})
	return n
}

// Server returns the socket.io server to mount on the router.
func (n *Notifier) Server() *socketio.Server {
	return n.srv
}

func (n *Notifier) handleConnection(socket *socketio.Socket) {
	me := socket.Id()
	logrus.WithField("socket", me).Debug("Socket connected")

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("join-design", func(datas ...any) {
		ack, args := extractAck(datas)
		designID, err := designArg(args)
		if err != nil {
			respondWithAck(socket, ack, "join-design-ack", map[string]any{
				"status": "error",
				"error":  err.Error(),
			}, err)
			return
		}

		room := designRoom(designID)
		socket.Join(room)
		n.srv.In(room).FetchSockets()(func(users []*socketio.RemoteSocket, fetchErr error) {
			if fetchErr != nil {
				respondWithAck(socket, ack, "join-design-ack", map[string]any{
					"status": "error",
					"error":  fetchErr.Error(),
				}, fetchErr)
				return
			}

			n.setWatchers(designID, len(users))
			logrus.WithFields(logrus.Fields{
				"socket":   me,
				"designID": designID,
				"watchers": len(users),
			}).Debug("Socket is watching design")

			respondWithAck(socket, ack, "join-design-ack", map[string]any{
				"status":   "ok",
				"watchers": len(users),
			}, nil)
		})
	})

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("leave-design", func(datas ...any) {
		_, args := extractAck(datas)
		designID, err := designArg(args)
		if err != nil {
			return
		}
		socket.Leave(designRoom(designID))
		n.recount(designID, me)
	})

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("disconnecting", func(datas ...any) {
		for _, room := range socket.Rooms().Keys() {
			if designID, ok := strings.CutPrefix(string(room), roomPrefix); ok {
				n.recount(designID, me)
			}
		}
	})

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("disconnect", func(datas ...any) {
		socket.RemoveAllListeners("")
	})
}

// recount refreshes the watcher count of a design, leaving out a socket
// that is on its way out.
func (n *Notifier) recount(designID string, leaving socketio.SocketId) {
	n.srv.In(designRoom(designID)).FetchSockets()(func(users []*socketio.RemoteSocket, err error) {
		if err != nil {
			logrus.WithError(err).WithField("designID", designID).Warn("Failed to count watchers")
			return
		}
		count := 0
		for _, u := range users {
			if u.Id() != leaving {
				count++
			}
		}
		n.setWatchers(designID, count)
	})
}

func (n *Notifier) setWatchers(designID string, count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if count <= 0 {
		delete(n.watchers, designID)
		return
	}
	n.watchers[designID] = count
}

// Watchers returns how many sockets watch a design.
func (n *Notifier) Watchers(designID string) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.watchers[designID]
}

// DesignSaved tells the watchers of a design that a new version is stored.
func (n *Notifier) DesignSaved(designID string, updatedAt time.Time) {
	payload := savedPayload(designID, updatedAt)
	log := logrus.WithFields(logrus.Fields{
		"designID": designID,
		"watchers": n.Watchers(designID),
	})
	if err := n.srv.To(designRoom(designID)).Emit("design-saved", payload); err != nil {
		log.WithError(err).Warn("Failed to emit design-saved")
		return
	}
	log.Debug("Emitted design-saved")
}

// Close shuts the socket.io server down.
func (n *Notifier) Close() {
	n.srv.Close(nil)
}

func savedPayload(designID string, updatedAt time.Time) map[string]any {
	return map[string]any{
		"designId":  designID,
		"updatedAt": updatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func designArg(args []any) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("design id is required")
	}
	designID, ok := args[0].(string)
	if !ok || designID == "" {
		return "", fmt.Errorf("invalid design id")
	}
	return designID, nil
}

// extractAck splits a trailing acknowledgement callback off the event
// arguments.
func extractAck(datas []any) (ack ackInvoker, args []any) {
	if len(datas) == 0 {
		return nil, datas
	}
	ack = wrapAck(datas[len(datas)-1])
	if ack == nil {
		return nil, datas
	}
	return ack, datas[:len(datas)-1]
}

// wrapAck adapts whatever callback shape the client library hands over.
// One-argument callbacks get the error or the payload; two-argument
// callbacks get both.
func wrapAck(candidate any) ackInvoker {
	if candidate == nil {
		return nil
	}
	fn := reflect.ValueOf(candidate)
	if fn.Kind() != reflect.Func {
		return nil
	}

	typ := fn.Type()
	return func(err error, payload map[string]any) {
		args := make([]reflect.Value, typ.NumIn())
		for i := range args {
			var v any
			switch {
			case len(args) == 1 && err != nil:
				v = err
			case len(args) == 1:
				v = payload
			case i == 0:
				v = err
			case i == 1:
				v = payload
			}
			args[i] = coerce(v, typ.In(i))
		}
		fn.Call(args)
	}
}

func coerce(value any, target reflect.Type) reflect.Value {
	if value == nil {
		return reflect.Zero(target)
	}
	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(target):
		return rv
	case rv.Type().ConvertibleTo(target):
		return rv.Convert(target)
	case target.Kind() == reflect.String:
		return reflect.ValueOf(fmt.Sprint(value)).Convert(target)
	}
	return reflect.Zero(target)
}

func respondWithAck(socket *socketio.Socket, ack ackInvoker, event string, payload map[string]any, ackErr error) {
	if ack != nil {
		ack(ackErr, payload)
	}
	if event != "" && payload != nil {
		_ = socket.Emit(event, payload)
	}
}
