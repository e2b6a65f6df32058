package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeAndPublish(t *testing.T) {
	b := New()
	defer b.Close()

	received := make(chan Message, 1)
	id := b.Subscribe(TopicSpeech, func(msg Message) {
		received <- msg
	})
	require.NotEmpty(t, id)

	msg, err := NewMessage(TopicSpeech, Speech{Text: "hello", Source: "test"})
	require.NoError(t, err)
	require.NoError(t, b.Publish(msg))

	select {
	case got := <-received:
		assert.Equal(t, TopicSpeech, got.Topic)
		var sp Speech
		require.NoError(t, got.Decode(&sp))
		assert.Equal(t, "hello", sp.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("message never delivered")
	}
}

func TestTopicIsolation(t *testing.T) {
	b := New()
	defer b.Close()

	var mu sync.Mutex
	var speech, status int
	b.Subscribe(TopicSpeech, func(Message) { mu.Lock(); speech++; mu.Unlock() })
	b.Subscribe(TopicStatus, func(Message) { mu.Lock(); status++; mu.Unlock() })

	msg, err := NewMessage(TopicStatus, Status{Component: "test"})
	require.NoError(t, err)
	require.NoError(t, b.Publish(msg))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return status == 1 && speech == 0
	}, time.Second, 10*time.Millisecond)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	defer b.Close()

	delivered := make(chan struct{}, 8)
	id := b.Subscribe(TopicSpeech, func(Message) { delivered <- struct{}{} })
	require.NoError(t, b.Unsubscribe(id))

	msg, err := NewMessage(TopicSpeech, Speech{Text: "x"})
	require.NoError(t, err)
	require.NoError(t, b.Publish(msg))

	select {
	case <-delivered:
		t.Fatal("unsubscribed handler was called")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, 0, b.SubscriberCount(TopicSpeech))
}

func TestPublishAfterClose(t *testing.T) {
	b := New()
	require.NoError(t, b.Close())

	msg, err := NewMessage(TopicSpeech, Speech{Text: "x"})
	require.NoError(t, err)
	assert.Error(t, b.Publish(msg))
	assert.Empty(t, b.Subscribe(TopicSpeech, func(Message) {}))
}

func TestHistoryBounded(t *testing.T) {
	b := NewWithHistory(4)
	defer b.Close()

	for i := 0; i < 10; i++ {
		msg, err := NewMessage(TopicStatus, Status{Component: "test"})
		require.NoError(t, err)
		require.NoError(t, b.Publish(msg))
	}
	assert.Len(t, b.History(), 4)
}

func TestNewMessageAssignsIdentity(t *testing.T) {
	a, err := NewMessage(TopicSpeech, Speech{Text: "one"})
	require.NoError(t, err)
	c, err := NewMessage(TopicSpeech, Speech{Text: "two"})
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, c.ID)
	assert.False(t, a.Timestamp.IsZero())
}
