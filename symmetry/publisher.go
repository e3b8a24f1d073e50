package symmetry

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// failureMessage is published on the error topic
type failureMessage struct {
	RequestID string `json:"requestId,omitempty"`
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable"`
	Timestamp int64  `json:"timestamp"`
}

// Publisher publishes mirror results and failures to MQTT
type Publisher struct {
	client    mqtt.Client
	topics    MQTTConfig
	qos       byte
	retain    bool
	published int
	mu        sync.Mutex
}

// NewPublisher creates a publisher writing under cfg's publish prefix
func NewPublisher(client mqtt.Client, cfg MQTTConfig) *Publisher {
	return &Publisher{
		client: client,
		topics: cfg,
		qos:    0,
		retain: false,
	}
}

// PublishResult publishes r on <prefix>/result[/<requestID>]
func (p *Publisher) PublishResult(requestID string, r *Result) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	if err := p.publish(p.topics.ResultTopic(requestID), payload); err != nil {
		return err
	}
	log.Printf("[MQTT] published result %q: %d moved, %d unmatched",
		requestID, r.MovedCount, len(r.UnmatchedSelected))
	return nil
}

// PublishError publishes a failure on <prefix>/error[/<requestID>]
func (p *Publisher) PublishError(requestID string, failure error) error {
	payload, err := json.Marshal(failureMessage{
		RequestID: requestID,
		Error:     failure.Error(),
		Kind:      ErrorKind(failure),
		Retryable: IsRetryable(failure),
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshaling failure: %w", err)
	}
	return p.publish(p.topics.ErrorTopic(requestID), payload)
}

func (p *Publisher) publish(topic string, payload []byte) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	p.mu.Lock()
	qos, retain := p.qos, p.retain
	p.mu.Unlock()

	token := p.client.Publish(topic, qos, retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	p.mu.Lock()
	p.published++
	p.mu.Unlock()
	return nil
}

// Published returns the number of messages handed to the broker
func (p *Publisher) Published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.mu.Lock()
		p.qos = qos
		p.mu.Unlock()
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.mu.Lock()
	p.retain = retain
	p.mu.Unlock()
}
