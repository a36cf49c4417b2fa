package testutil

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	rabbitmqTC "github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"github.com/hopnet-labs/hoplink/internal/infra"
)

// TestQueue holds test message broker resources
type TestQueue struct {
	Conn      *amqp.Connection
	Channel   *amqp.Channel
	URL       string
	container *rabbitmqTC.RabbitMQContainer
}

// SetupTestQueue creates a new test RabbitMQ container with the click
// queue declared.
func SetupTestQueue(ctx context.Context, queueName string) (*TestQueue, error) {
	container, err := rabbitmqTC.Run(ctx, "rabbitmq:3.12-alpine")
	if err != nil {
		return nil, err
	}

	url, err := container.AmqpURL(ctx)
	if err != nil {
		if terr := container.Terminate(ctx); terr != nil {
			err = terr
		}
		return nil, err
	}

	conn, ch, err := infra.NewQueueChannel(url, queueName)
	if err != nil {
		if terr := container.Terminate(ctx); terr != nil {
			err = terr
		}
		return nil, err
	}

	return &TestQueue{Conn: conn, Channel: ch, URL: url, container: container}, nil
}

// Teardown closes connections and terminates container
func (t *TestQueue) Teardown(ctx context.Context) {
	if t.Channel != nil {
		t.Channel.Close()
	}
	if t.Conn != nil {
		t.Conn.Close()
	}
	if t.container != nil {
		if err := t.container.Terminate(ctx); err != nil {
			return
		}
	}
}
