package injector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/dccon-cli/internal/cdp"
	"github.com/xkilldash9x/dccon-cli/internal/discovery"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// -- Fakes --

type fakeSession struct {
	address string
	dialer  *fakeDialer
}

func (s *fakeSession) Evaluate(ctx context.Context, expression string, timeout time.Duration) (*cdp.EvaluateResult, error) {
	s.dialer.mu.Lock()
	s.dialer.sent = append(s.dialer.sent, s.address)
	behavior := s.dialer.eval[s.address]
	s.dialer.mu.Unlock()

	if behavior.err != nil {
		return nil, behavior.err
	}
	value, _ := json.Marshal(behavior.value)
	return &cdp.EvaluateResult{Result: cdp.RemoteObject{Type: "string", Value: value}}, nil
}

func (s *fakeSession) Close() error {
	s.dialer.mu.Lock()
	defer s.dialer.mu.Unlock()
	s.dialer.closed = append(s.dialer.closed, s.address)
	return nil
}

type evalBehavior struct {
	value string
	err   error
}

// fakeDialer records every dial, send and close by address.
type fakeDialer struct {
	mu       sync.Mutex
	dialFail map[string]error
	eval     map[string]evalBehavior
	dialed   []string
	sent     []string
	closed   []string
	onDial   func(address string)
}

func (d *fakeDialer) Dial(ctx context.Context, address string) (Session, error) {
	d.mu.Lock()
	d.dialed = append(d.dialed, address)
	err := d.dialFail[address]
	d.mu.Unlock()

	if d.onDial != nil {
		d.onDial(address)
	}
	if err != nil {
		return nil, err
	}
	return &fakeSession{address: address, dialer: d}, nil
}

func targetsFor(addresses ...string) []discovery.Target {
	targets := make([]discovery.Target, 0, len(addresses))
	for _, a := range addresses {
		targets = append(targets, discovery.Target{URL: "http://chat/" + a, WebSocketDebuggerURL: a})
	}
	return targets
}

type outcomeView struct {
	Address string
	Kind    string
	Result  string
}

func view(outcomes []Outcome) []outcomeView {
	views := make([]outcomeView, 0, len(outcomes))
	for _, o := range outcomes {
		views = append(views, outcomeView{Address: o.Target.WebSocketDebuggerURL, Kind: o.Kind.String(), Result: o.Result})
	}
	return views
}

// -- Test Cases --

func TestNew(t *testing.T) {
	_, err := New(nil, zap.NewNop())
	assert.Error(t, err)
	_, err = New(&fakeDialer{}, nil)
	assert.Error(t, err)

	o, err := New(&fakeDialer{}, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, o)
}

func TestRun_IsolatesFailuresAndPreservesOrder(t *testing.T) {
	dialer := &fakeDialer{
		dialFail: map[string]error{"ws://b": &cdp.ConnectionError{Address: "ws://b", Err: errors.New("refused")}},
		eval: map[string]evalBehavior{
			"ws://a": {value: "execute done"},
			"ws://c": {err: &cdp.TimeoutError{ID: 1, Method: "Runtime.evaluate", After: time.Second}},
			"ws://d": {value: "already executed"},
		},
	}
	o, err := New(dialer, zaptest.NewLogger(t))
	require.NoError(t, err)

	outcomes := o.Run(context.Background(), targetsFor("ws://a", "ws://b", "ws://c", "ws://d"), "watcher()", time.Second)

	want := []outcomeView{
		{Address: "ws://a", Kind: "injected", Result: "execute done"},
		{Address: "ws://b", Kind: "connect_failed"},
		{Address: "ws://c", Kind: "eval_failed"},
		{Address: "ws://d", Kind: "injected", Result: "already executed"},
	}
	if diff := cmp.Diff(want, view(outcomes)); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}

	var timeoutErr *cdp.TimeoutError
	assert.ErrorAs(t, outcomes[2].Err, &timeoutErr)
	var connErr *cdp.ConnectionError
	assert.ErrorAs(t, outcomes[1].Err, &connErr)

	// No send on the target whose dial failed; every opened channel closed.
	assert.Equal(t, []string{"ws://a", "ws://c", "ws://d"}, dialer.sent)
	assert.Equal(t, []string{"ws://a", "ws://c", "ws://d"}, dialer.closed)

	summary := Summarize(outcomes)
	assert.Equal(t, Summary{Injected: 2, ConnectFailed: 1, EvalFailed: 1}, summary)
	assert.Equal(t, 4, summary.Total())
	assert.Equal(t, 2, summary.Failed())
}

func TestRun_OneOutcomePerTarget(t *testing.T) {
	o, err := New(&fakeDialer{}, zap.NewNop())
	require.NoError(t, err)

	for _, n := range []int{0, 1, 7} {
		addrs := make([]string, n)
		for i := range addrs {
			addrs[i] = "ws://t/" + string(rune('a'+i))
		}
		outcomes := o.Run(context.Background(), targetsFor(addrs...), "x", time.Second)
		require.Len(t, outcomes, n)
		for i, out := range outcomes {
			assert.Equal(t, addrs[i], out.Target.WebSocketDebuggerURL)
		}
	}
}

func TestRun_ContextCancelledMidPass(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dialer := &fakeDialer{eval: map[string]evalBehavior{"ws://a": {value: "execute done"}}}
	dialer.onDial = func(address string) {
		if address == "ws://a" {
			cancel()
		}
	}
	o, err := New(dialer, zap.NewNop())
	require.NoError(t, err)

	outcomes := o.Run(ctx, targetsFor("ws://a", "ws://b", "ws://c"), "x", time.Second)
	require.Len(t, outcomes, 3)
	assert.Equal(t, Injected, outcomes[0].Kind)
	for _, out := range outcomes[1:] {
		assert.Equal(t, ConnectFailed, out.Kind)
		assert.ErrorIs(t, out.Err, context.Canceled)
	}
	assert.Equal(t, []string{"ws://a"}, dialer.dialed)
}

func TestOutcomeKindString(t *testing.T) {
	assert.Equal(t, "injected", Injected.String())
	assert.Equal(t, "connect_failed", ConnectFailed.String())
	assert.Equal(t, "eval_failed", EvalFailed.String())
	assert.Equal(t, "OutcomeKind(9)", OutcomeKind(9).String())
}

// TestRun_OverWebSocket drives the production dialer against fake targets.
func TestRun_OverWebSocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd cdp.Command
			if json.Unmarshal(data, &cmd) != nil {
				continue
			}
			reply := `{"id":1,"result":{"result":{"type":"string","value":"execute done"}}}`
			if r.URL.Path == "/devtools/page/broken" {
				reply = `{"id":1,"error":{"code":-32000,"message":"Cannot find context"}}`
			}
			_ = conn.WriteMessage(websocket.TextMessage, []byte(reply))
		}
	}))
	t.Cleanup(server.Close)
	base := "ws" + strings.TrimPrefix(server.URL, "http")

	closed := httptest.NewServer(http.NotFoundHandler())
	unreachable := "ws" + strings.TrimPrefix(closed.URL, "http") + "/devtools/page/gone"
	closed.Close()

	o, err := New(ChannelDialer{Options: cdp.Options{HandshakeTimeout: time.Second}}, zaptest.NewLogger(t))
	require.NoError(t, err)

	outcomes := o.Run(context.Background(), []discovery.Target{
		{URL: "http://x/1", WebSocketDebuggerURL: base + "/devtools/page/ok"},
		{URL: "http://x/2", WebSocketDebuggerURL: unreachable},
		{URL: "http://x/3", WebSocketDebuggerURL: base + "/devtools/page/broken"},
	}, "watcher()", time.Second)

	require.Len(t, outcomes, 3)
	assert.Equal(t, Injected, outcomes[0].Kind)
	assert.Equal(t, "execute done", outcomes[0].Result)
	assert.Equal(t, ConnectFailed, outcomes[1].Kind)
	assert.Equal(t, EvalFailed, outcomes[2].Kind)
	var evalErr *cdp.EvalError
	assert.ErrorAs(t, outcomes[2].Err, &evalErr)
}
