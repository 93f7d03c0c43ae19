package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/offers/internal/domain"
	"github.com/vladislavdragonenkov/offers/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/offers/internal/service/notify"
	"github.com/vladislavdragonenkov/offers/internal/service/outbox"
)

const (
	transportKafka = "kafka"
	transportLog   = "log"
)

// eventTransport — куда outbox-воркер отправляет события предложений.
type eventTransport struct {
	kind      string
	publisher domain.OutboxPublisher
	dlq       domain.OutboxPublisher
	producer  *kafka.Producer
}

// newEventTransport подключает Kafka, если заданы brokers. При пустом списке
// или ошибке подключения события пишутся в лог и DLQ не используется.
func newEventTransport(cfg Config, logger *log.Entry) *eventTransport {
	logTransport := &eventTransport{
		kind:      transportLog,
		publisher: notify.NewLogTransport(logger.WithField("component", "log-transport")),
	}

	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		return logTransport
	}

	producer, err := kafka.NewProducer(brokers, cfg.KafkaClientID, logger.WithField("component", "kafka-producer"))
	if err != nil {
		logger.WithError(err).WithField("brokers", brokers).Warn("kafka unavailable, offer events go to log")
		return logTransport
	}
	logger.WithField("brokers", brokers).Info("kafka producer connected")

	routes := kafka.DefaultRoutes()
	return &eventTransport{
		kind:      transportKafka,
		publisher: kafka.NewOutboxPublisher(producer, routes),
		dlq:       kafka.NewDLQPublisher(producer, kafka.TopicDeadLetterQueue, routes),
		producer:  producer,
	}
}

// workerOptions добавляет DLQ к параметрам воркера, если транспорт его поддерживает.
func (t *eventTransport) workerOptions(base ...outbox.Option) []outbox.Option {
	if t.dlq == nil {
		return base
	}
	return append(base, outbox.WithDLQPublisher(t.dlq))
}

func (t *eventTransport) close(logger *log.Entry) {
	if t == nil || t.producer == nil {
		return
	}
	if err := t.producer.Close(); err != nil {
		logger.WithError(err).Warn("close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}
