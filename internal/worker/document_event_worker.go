package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"docqa-client/internal/model"
	"docqa-client/internal/platform/rabbitmq"
)

type EventStore interface {
	Create(event *model.DocumentEvent) error
}

// acknowledger settles one delivery; amqp.Delivery satisfies it.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// DocumentEventWorker drains the journal queue into the event store.
type DocumentEventWorker struct {
	conn      *amqp.Connection
	store     EventStore
	queueName string
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDocumentEventWorker(conn *amqp.Connection, store EventStore, queueName string, logger *zap.Logger) *DocumentEventWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentEventWorker{
		conn:      conn,
		store:     store,
		queueName: queueName,
		logger:    logger,
	}
}

func (w *DocumentEventWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	ch, err := w.conn.Channel()
	if err != nil {
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		return err
	}
	if err := ch.Qos(16, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(w.queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()
		w.consume(workerCtx, deliveries)
	}()

	return nil
}

func (w *DocumentEventWorker) consume(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			w.handle(d.Body, d)
		}
	}
}

// handle persists one event. Events that fail to decode or store are
// dropped, never requeued.
func (w *DocumentEventWorker) handle(body []byte, ack acknowledger) {
	event, err := decodeEvent(body)
	if err != nil {
		w.logger.Warn("worker decode document event failed", zap.Error(err))
		w.settle(ack.Nack(false, false))
		return
	}

	if err := w.store.Create(event); err != nil {
		w.logger.Error("worker persist document event failed", zap.Uint("document_id", event.DocumentID), zap.Error(err))
		w.settle(ack.Nack(false, false))
		return
	}

	w.settle(ack.Ack(false))
}

func (w *DocumentEventWorker) settle(err error) {
	if err != nil {
		w.logger.Warn("worker settle delivery failed", zap.Error(err))
	}
}

func (w *DocumentEventWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func decodeEvent(body []byte) (*model.DocumentEvent, error) {
	var event model.DocumentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("unmarshal document event failed: %w", err)
	}
	if event.DocumentID == 0 {
		return nil, errors.New("document event without document id")
	}
	// Rows are inserted fresh by the consumer.
	event.ID = 0
	return &event, nil
}
