package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// -- Test Helpers --

// newFakeTarget serves a WebSocket endpoint and hands each accepted
// connection to handle. It returns the ws:// address.
func newFakeTarget(t *testing.T, handle func(conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// readCommand reads one frame and decodes it as a command envelope.
func readCommand(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil
	}
	var cmd map[string]any
	assert.NoError(t, json.Unmarshal(data, &cmd))
	return cmd
}

// drain blocks until the client goes away.
func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func dial(t *testing.T, address string) *Channel {
	t.Helper()
	ch, err := Dial(context.Background(), address, Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}

// -- Test Cases --

func TestEvaluate_Success(t *testing.T) {
	received := make(chan map[string]any, 1)
	addr := newFakeTarget(t, func(conn *websocket.Conn) {
		cmd := readCommand(t, conn)
		received <- cmd
		// An event, a foreign response and garbage precede the real answer.
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"method":"Runtime.consoleAPICalled","params":{}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"id":2,"result":{}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"id":1,"result":{"result":{"type":"string","value":"execute done"}}}`))
		drain(conn)
	})

	ch := dial(t, addr)
	result, err := ch.Evaluate(context.Background(), "1+1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "execute done", result.Result.String())
	assert.Nil(t, result.ExceptionDetails)
	assert.Zero(t, ch.Pending())

	cmd := <-received
	assert.EqualValues(t, 1, cmd["id"])
	assert.Equal(t, "Runtime.evaluate", cmd["method"])
	assert.Equal(t, map[string]any{"expression": "1+1"}, cmd["params"])
}

func TestSend_NonMatchingIDsDoNotResolve(t *testing.T) {
	addr := newFakeTarget(t, func(conn *websocket.Conn) {
		readCommand(t, conn)
		for i := 0; i < 5; i++ {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"id":7,"result":{}}`))
		}
		drain(conn)
	})

	ch := dial(t, addr)
	start := time.Now()
	_, err := ch.Send(context.Background(), NewEvaluateCommand("x"), 150*time.Millisecond)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestSend_TimeoutLeavesNothingPending(t *testing.T) {
	release := make(chan struct{})
	addr := newFakeTarget(t, func(conn *websocket.Conn) {
		readCommand(t, conn)
		<-release
		// Too late: the request was abandoned.
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"id":1,"result":{"result":{"type":"string","value":"late"}}}`))
		drain(conn)
	})

	ch := dial(t, addr)
	_, err := ch.Evaluate(context.Background(), "x", 50*time.Millisecond)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.EqualValues(t, 1, timeoutErr.ID)
	assert.Equal(t, "Runtime.evaluate", timeoutErr.Method)
	assert.True(t, timeoutErr.Timeout())
	assert.Zero(t, ch.Pending(), "timer must not stay pending after the timeout fires")

	close(release)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, ch.Pending())
}

func TestSend_ErrorPayload(t *testing.T) {
	addr := newFakeTarget(t, func(conn *websocket.Conn) {
		readCommand(t, conn)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"id":1,"error":{"code":-32601,"message":"'Runtime.evaluate' wasn't found"}}`))
		drain(conn)
	})

	ch := dial(t, addr)
	resp, err := ch.Send(context.Background(), NewEvaluateCommand("x"), time.Second)

	var evalErr *EvalError
	require.ErrorAs(t, err, &evalErr)
	assert.EqualValues(t, -32601, evalErr.Code)
	assert.Contains(t, err.Error(), "wasn't found")
	require.NotNil(t, resp)
	assert.EqualValues(t, 1, resp.ID)
}

func TestEvaluate_ExceptionIsEvalError(t *testing.T) {
	addr := newFakeTarget(t, func(conn *websocket.Conn) {
		readCommand(t, conn)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"id":1,"result":{
			"result":{"type":"object","subtype":"error","description":"ReferenceError: nope is not defined"},
			"exceptionDetails":{"exceptionId":1,"text":"Uncaught","lineNumber":0,"columnNumber":0,
				"exception":{"type":"object","description":"ReferenceError: nope is not defined"}}}}`))
		drain(conn)
	})

	ch := dial(t, addr)
	result, err := ch.Evaluate(context.Background(), "nope", time.Second)

	var evalErr *EvalError
	require.ErrorAs(t, err, &evalErr)
	assert.Contains(t, err.Error(), "ReferenceError")
	require.NotNil(t, result)
	assert.NotNil(t, result.ExceptionDetails)
}

func TestSend_DuplicateInFlightID(t *testing.T) {
	got := make(chan struct{})
	addr := newFakeTarget(t, func(conn *websocket.Conn) {
		readCommand(t, conn)
		close(got)
		drain(conn)
	})

	ch := dial(t, addr)
	errs := make(chan error, 1)
	go func() {
		_, err := ch.Send(context.Background(), NewEvaluateCommand("a"), time.Second)
		errs <- err
	}()
	<-got

	_, err := ch.Send(context.Background(), NewEvaluateCommand("b"), time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in flight")

	require.NoError(t, ch.Close())
	assert.ErrorIs(t, <-errs, ErrClosed)
}

func TestClose_FailsPendingAndIsIdempotent(t *testing.T) {
	got := make(chan struct{})
	addr := newFakeTarget(t, func(conn *websocket.Conn) {
		readCommand(t, conn)
		close(got)
		drain(conn)
	})

	ch := dial(t, addr)
	errs := make(chan error, 1)
	go func() {
		_, err := ch.Evaluate(context.Background(), "x", 5*time.Second)
		errs <- err
	}()
	<-got

	assert.NoError(t, ch.Close())
	assert.NotPanics(t, func() { _ = ch.Close() })

	err := <-errs
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Zero(t, ch.Pending())

	_, err = ch.Evaluate(context.Background(), "x", time.Second)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSend_ConnectionDroppedWhilePending(t *testing.T) {
	addr := newFakeTarget(t, func(conn *websocket.Conn) {
		readCommand(t, conn)
		// Returning closes the connection.
	})

	ch := dial(t, addr)
	_, err := ch.Evaluate(context.Background(), "x", 5*time.Second)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, addr, connErr.Address)
}

func TestSend_ContextCancelled(t *testing.T) {
	addr := newFakeTarget(t, func(conn *websocket.Conn) {
		drain(conn)
	})

	ch := dial(t, addr)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := ch.Evaluate(ctx, "x", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, ch.Pending())
}

func TestDial_Failure(t *testing.T) {
	t.Run("Nothing listening", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		addr := "ws" + strings.TrimPrefix(server.URL, "http")
		server.Close()

		_, err := Dial(context.Background(), addr, Options{})
		var connErr *ConnectionError
		require.ErrorAs(t, err, &connErr)
		assert.Equal(t, addr, connErr.Address)
	})

	t.Run("Handshake refused", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		t.Cleanup(server.Close)

		_, err := Dial(context.Background(), "ws"+strings.TrimPrefix(server.URL, "http"), Options{})
		var connErr *ConnectionError
		require.ErrorAs(t, err, &connErr)
		assert.True(t, errors.Is(err, websocket.ErrBadHandshake))
	})

	t.Run("Malformed address", func(t *testing.T) {
		_, err := Dial(context.Background(), "::not a url", Options{})
		var connErr *ConnectionError
		assert.ErrorAs(t, err, &connErr)
	})
}

func TestRemoteObjectString(t *testing.T) {
	testCases := []struct {
		name string
		obj  RemoteObject
		want string
	}{
		{name: "String value", obj: RemoteObject{Type: "string", Value: json.RawMessage(`"already executed"`)}, want: "already executed"},
		{name: "Number value", obj: RemoteObject{Type: "number", Value: json.RawMessage(`42`)}, want: "42"},
		{name: "Object description", obj: RemoteObject{Type: "object", Description: "Window"}, want: "Window"},
		{name: "Undefined", obj: RemoteObject{Type: "undefined"}, want: "undefined"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.obj.String())
		})
	}
}
