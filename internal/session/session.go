package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"supplydash/pkg/logging"
)

const (
	// globalHandle addresses the engine's Global object.
	globalHandle = -1

	closeGrace = time.Second
)

// Handle references a remote engine object.
type Handle struct {
	Handle    int    `json:"qHandle"`
	Type      string `json:"qType"`
	GenericID string `json:"qGenericId,omitempty"`
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Handle  int         `json:"handle"`
	Params  interface{} `json:"params"`
}

type rpcResponse struct {
	ID     *int64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// Session is one live engine connection. Responses are dispatched by id from
// a single reader goroutine; writes are serialized.
type Session struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan rpcResponse
	err     error

	done      chan struct{}
	closeOnce sync.Once

	doc *Handle
}

func newSession(conn *websocket.Conn) *Session {
	s := &Session{
		conn:    conn,
		pending: make(map[int64]chan rpcResponse),
		done:    make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// Done is closed when the connection ends for any reason.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns why the session ended, or nil while it is open.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Doc returns the document opened by the client, if any.
func (s *Session) Doc() *Handle {
	return s.doc
}

// Close closes the connection. Pending calls fail with ErrSessionClosed.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(closeGrace))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	<-s.done
	return err
}

func (s *Session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Call invokes method on the object behind handle and decodes the result
// into result, which may be nil.
func (s *Session) Call(ctx context.Context, handle int, method string, params interface{}, result interface{}) error {
	if params == nil {
		params = []interface{}{}
	}

	ch := make(chan rpcResponse, 1)
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.nextID++
	id := s.nextID
	s.pending[id] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	s.writeMu.Lock()
	err := s.conn.WriteJSON(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Handle: handle, Params: params})
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		// a response may have raced with the close
		select {
		case resp := <-ch:
			return decodeResult(method, resp, result)
		default:
			return ErrSessionClosed
		}
	case resp := <-ch:
		return decodeResult(method, resp, result)
	}
}

func decodeResult(method string, resp rpcResponse, result interface{}) error {
	if resp.Error != nil {
		return fmt.Errorf("%s: %w", method, resp.Error)
	}
	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("%s: decoding result: %w", method, err)
	}
	return nil
}

// OpenDoc opens the document docID and returns its handle.
func (s *Session) OpenDoc(ctx context.Context, docID string) (*Handle, error) {
	var out struct {
		Return Handle `json:"qReturn"`
	}
	if err := s.Call(ctx, globalHandle, "OpenDoc", []interface{}{docID}, &out); err != nil {
		return nil, err
	}
	return &out.Return, nil
}

// CreateSessionObject creates a transient object in doc from props.
func (s *Session) CreateSessionObject(ctx context.Context, doc *Handle, props interface{}) (*Handle, error) {
	var out struct {
		Return Handle `json:"qReturn"`
	}
	if err := s.Call(ctx, doc.Handle, "CreateSessionObject", []interface{}{props}, &out); err != nil {
		return nil, err
	}
	return &out.Return, nil
}

// GetLayout returns the evaluated layout of obj.
func (s *Session) GetLayout(ctx context.Context, obj *Handle) (*Layout, error) {
	var out struct {
		Layout Layout `json:"qLayout"`
	}
	if err := s.Call(ctx, obj.Handle, "GetLayout", nil, &out); err != nil {
		return nil, err
	}
	return &out.Layout, nil
}

func (s *Session) readLoop() {
	var err error
	for {
		var resp rpcResponse
		if err = s.conn.ReadJSON(&resp); err != nil {
			break
		}
		if resp.ID == nil {
			logging.Debug("Session", "Engine notification: %s", resp.Method)
			continue
		}

		s.mu.Lock()
		ch, ok := s.pending[*resp.ID]
		s.mu.Unlock()
		if !ok {
			logging.Debug("Session", "Dropping response for unknown id %d", *resp.ID)
			continue
		}
		select {
		case ch <- resp:
		default:
		}
	}

	s.mu.Lock()
	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		s.err = ErrSessionClosed
	} else {
		s.err = fmt.Errorf("%w: %v", ErrSessionClosed, err)
	}
	s.mu.Unlock()
	_ = s.conn.Close()
	close(s.done)
	logging.Debug("Session", "Engine connection ended: %v", err)
}
