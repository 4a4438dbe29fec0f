package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangePipelines Exchange = "sentra.pipelines"
	ExchangeEvents    Exchange = "sentra.events"
	ExchangeDLQ       Exchange = "sentra.dlq"
)

// Queues — имена очередей.
const (
	// QueuePipelinesExecute — запросы на выполнение pipeline.
	// Потребитель: sentra-server.
	QueuePipelinesExecute Queue = "pipelines.execute"

	// QueuePipelineEvents — события жизненного цикла для внешних систем.
	QueuePipelineEvents Queue = "pipelines.events"

	// QueueDLQPipelines — DLQ для необработанных запросов.
	QueueDLQPipelines Queue = "dlq.pipelines"
)

// Routing keys.
const (
	RoutingKeyExecute   RoutingKey = "execute"
	RoutingKeyLifecycle RoutingKey = "lifecycle"
	RoutingKeyDLQ       RoutingKey = "pipelines"
)

// SetupTopology создаёт обменники, очереди и привязки.
func SetupTopology(conn *Connection) error {
	return conn.WithChannel(func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangePipelines, "direct"},
		{ExchangeEvents, "direct"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	// Запросы на выполнение уходят в DLQ после неуспешной обработки
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQ),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		{QueuePipelinesExecute, dlqArgs},
		{QueuePipelineEvents, nil},
		{QueueDLQPipelines, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueuePipelinesExecute, RoutingKeyExecute, ExchangePipelines},
		{QueuePipelineEvents, RoutingKeyLifecycle, ExchangeEvents},
		{QueueDLQPipelines, RoutingKeyDLQ, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}
