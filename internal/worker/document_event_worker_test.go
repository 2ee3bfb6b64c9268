package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa-client/internal/model"
)

type fakeStore struct {
	mu     sync.Mutex
	events []model.DocumentEvent
	err    error
}

func (s *fakeStore) Create(event *model.DocumentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	event.ID = uint(len(s.events) + 1)
	s.events = append(s.events, *event)
	return nil
}

type fakeAck struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *fakeAck) Ack(bool) error {
	a.acked++
	return nil
}

func (a *fakeAck) Nack(_, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

// channelAck records settlements made through amqp.Delivery by tag.
type channelAck struct {
	mu     sync.Mutex
	acked  []uint64
	nacked []uint64
	done   chan struct{}
}

func (a *channelAck) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	a.acked = append(a.acked, tag)
	a.mu.Unlock()
	a.done <- struct{}{}
	return nil
}

func (a *channelAck) Nack(tag uint64, _, _ bool) error {
	a.mu.Lock()
	a.nacked = append(a.nacked, tag)
	a.mu.Unlock()
	a.done <- struct{}{}
	return nil
}

func (a *channelAck) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

const validBody = `{"document_id":4,"filename":"a.pdf","phase":"done","progress":100,"observed_at":"2026-01-02T03:04:05Z"}`

func TestDecodeEvent(t *testing.T) {
	event, err := decodeEvent([]byte(`{"id":9,"document_id":4,"filename":"a.pdf","phase":"done","progress":100,"observed_at":"2026-01-02T03:04:05Z"}`))
	require.NoError(t, err)
	assert.Zero(t, event.ID)
	assert.Equal(t, uint(4), event.DocumentID)
	assert.Equal(t, "done", string(event.Phase))
	assert.Equal(t, 100, event.Progress)

	_, err = decodeEvent([]byte(`{"filename":"a.pdf"}`))
	assert.Error(t, err)

	_, err = decodeEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestHandleSettlesDelivery(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		storeErr   error
		wantAck    int
		wantNack   int
		wantStored int
	}{
		{name: "stored", body: validBody, wantAck: 1, wantStored: 1},
		{name: "bad json", body: `not json`, wantNack: 1},
		{name: "missing document", body: `{"filename":"a.pdf"}`, wantNack: 1},
		{name: "store failure", body: validBody, storeErr: errors.New("disk full"), wantNack: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{err: tt.storeErr}
			ack := &fakeAck{}
			w := NewDocumentEventWorker(nil, store, "docqa.document.event", nil)

			w.handle([]byte(tt.body), ack)

			assert.Equal(t, tt.wantAck, ack.acked)
			assert.Equal(t, tt.wantNack, ack.nacked)
			assert.False(t, ack.requeue)
			assert.Len(t, store.events, tt.wantStored)
		})
	}
}

func TestConsumeDrainsDeliveries(t *testing.T) {
	store := &fakeStore{}
	ack := &channelAck{done: make(chan struct{}, 2)}
	w := NewDocumentEventWorker(nil, store, "docqa.document.event", nil)

	deliveries := make(chan amqp.Delivery, 2)
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(validBody)}
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte(`{}`)}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		w.consume(ctx, deliveries)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-ack.done:
		case <-time.After(2 * time.Second):
			t.Fatal("delivery was not settled")
		}
	}
	cancel()
	<-stopped

	ack.mu.Lock()
	defer ack.mu.Unlock()
	assert.Equal(t, []uint64{1}, ack.acked)
	assert.Equal(t, []uint64{2}, ack.nacked)
	require.Len(t, store.events, 1)
	assert.Equal(t, "a.pdf", store.events[0].Filename)
}

func TestConsumeStopsWhenChannelCloses(t *testing.T) {
	w := NewDocumentEventWorker(nil, &fakeStore{}, "docqa.document.event", nil)
	deliveries := make(chan amqp.Delivery)
	close(deliveries)

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.consume(context.Background(), deliveries)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consume did not return")
	}
}
