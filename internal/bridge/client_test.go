package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingTransport struct {
	mu     sync.Mutex
	sent   []Message
	err    error
	onSend func(Message)
}

func (t *recordingTransport) Broadcast(_ context.Context, data []byte) error {
	msg, err := Decode(data)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.sent = append(t.sent, msg)
	onSend := t.onSend
	sendErr := t.err
	t.mu.Unlock()

	if onSend != nil {
		onSend(msg)
	}
	return sendErr
}

func (t *recordingTransport) messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Message(nil), t.sent...)
}

func TestClientRequestReceivesSynchronousReply(t *testing.T) {
	t.Parallel()

	transport := &recordingTransport{}
	client := NewClient(transport, zap.NewNop())
	transport.onSend = func(msg Message) {
		if msg.Kind() == KindCheckIdentity {
			client.DeliverMessage(IdentityReport{UID: "100", DisplayName: "Lan"})
		}
	}

	resp := client.Request(context.Background(), CheckIdentity{}, KindIdentityReport, time.Second)

	require.True(t, resp.OK())
	assert.Equal(t, IdentityReport{UID: "100", DisplayName: "Lan"}, resp.Message)
	assert.Equal(t, []Message{CheckIdentity{}}, transport.messages())
}

func TestClientAwaitResponseTimesOut(t *testing.T) {
	t.Parallel()

	client := NewClient(&recordingTransport{}, nil)

	start := time.Now()
	resp := client.AwaitResponse(context.Background(), KindPong, 20*time.Millisecond)

	assert.Equal(t, OutcomeTimedOut, resp.Outcome)
	assert.Nil(t, resp.Message)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.False(t, client.mailbox.Pending(KindPong), "timed out slot must be cleared")
}

func TestClientAwaitResponseLateMatchIsDropped(t *testing.T) {
	t.Parallel()

	client := NewClient(&recordingTransport{}, nil)

	resp := client.AwaitResponse(context.Background(), KindTargetResult, 5*time.Millisecond)
	require.Equal(t, OutcomeTimedOut, resp.Outcome)

	var observed []Message
	stop := client.Observe(func(msg Message) { observed = append(observed, msg) })
	defer stop()

	client.DeliverMessage(TargetResult{Found: true})
	assert.Len(t, observed, 1)
	assert.False(t, client.mailbox.Pending(KindTargetResult))
}

func TestClientAwaitResponseFirstMatchWins(t *testing.T) {
	t.Parallel()

	client := NewClient(&recordingTransport{}, nil)

	done := make(chan Response, 1)
	go func() {
		done <- client.AwaitResponse(context.Background(), KindPong, time.Second)
	}()

	require.Eventually(t, func() bool { return client.mailbox.Pending(KindPong) }, time.Second, time.Millisecond)
	client.DeliverMessage(Pong{Version: "first"})
	client.DeliverMessage(Pong{Version: "second"})

	resp := <-done
	require.True(t, resp.OK())
	assert.Equal(t, Pong{Version: "first"}, resp.Message)
}

func TestClientAwaitResponseCancelled(t *testing.T) {
	t.Parallel()

	client := NewClient(&recordingTransport{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := client.AwaitResponse(ctx, KindActionComplete, time.Second)
	assert.Equal(t, OutcomeCancelled, resp.Outcome)
	assert.False(t, client.mailbox.Pending(KindActionComplete))
}

func TestClientDeliverRawTraffic(t *testing.T) {
	t.Parallel()

	client := NewClient(&recordingTransport{}, nil)

	slot := client.Register(KindIdentityReport)
	require.ErrorIs(t, client.Deliver([]byte(`{"type":"identity-report","payload":{"uid":false}}`)), ErrMalformed)
	assert.Equal(t, OutcomeInvalid, (<-slot.Done()).Outcome)

	slot = client.Register(KindIdentityReport)
	require.ErrorIs(t, client.Deliver([]byte(`{"type":"mystery"}`)), ErrUnknownKind)
	require.ErrorIs(t, client.Deliver([]byte(`garbage`)), ErrMalformed)
	assert.True(t, client.mailbox.Pending(KindIdentityReport), "unknown kinds must not touch slots")

	require.NoError(t, client.Deliver([]byte(`{"type":"identity-report","payload":{"uid":"9","displayName":"Mai"}}`)))
	resp := <-slot.Done()
	require.True(t, resp.OK())
	assert.Equal(t, IdentityReport{UID: "9", DisplayName: "Mai"}, resp.Message)
}

func TestClientSendSwallowsTransportErrors(t *testing.T) {
	t.Parallel()

	transport := &recordingTransport{err: errors.New("no agent")}
	client := NewClient(transport, nil)

	assert.NotPanics(t, func() { client.Send(context.Background(), Ping{}) })
	assert.Len(t, transport.messages(), 1)

	nilTransport := NewClient(nil, nil)
	assert.NotPanics(t, func() { nilTransport.Send(context.Background(), Ping{}) })
}

func TestClientObserveUnsubscribe(t *testing.T) {
	t.Parallel()

	client := NewClient(&recordingTransport{}, nil)

	count := 0
	stop := client.Observe(func(Message) { count++ })
	client.DeliverMessage(Pong{})
	stop()
	client.DeliverMessage(Pong{})

	assert.Equal(t, 1, count)
}
