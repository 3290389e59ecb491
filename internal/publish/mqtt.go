// Package publish fans persisted observations out over MQTT.
package publish

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/i474232898/earwax-monitoring/internal/earwax"
)

// Payload is the MQTT message body for one observation. Keys match the ledger columns.
type Payload struct {
	ID               int64   `json:"id"`
	Age              int     `json:"age"`
	Pollen           float64 `json:"pollen"`
	Dust             float64 `json:"dust"`
	Humidity         float64 `json:"humidity"`
	Temperature      float64 `json:"temperature"`
	Traveling        string  `json:"traveling"`
	PollenSeason     string  `json:"pollen_season"`
	EarwaxPercentage float64 `json:"earwax_percentage"`
	DateRecorded     string  `json:"date_recorded"`
	Terminal         bool    `json:"terminal"`
}

// FormatPayload creates the JSON payload for an observation.
func FormatPayload(obs earwax.Observation) ([]byte, error) {
	return json.Marshal(Payload{
		ID:               obs.ID,
		Age:              obs.Age,
		Pollen:           obs.Pollen,
		Dust:             obs.Dust,
		Humidity:         obs.Humidity,
		Temperature:      obs.Temperature,
		Traveling:        string(obs.Traveling),
		PollenSeason:     string(obs.PollenSeason),
		EarwaxPercentage: obs.EarwaxPercentage,
		DateRecorded:     obs.RecordedAt.UTC().Format(time.RFC3339),
		Terminal:         obs.IsTerminal(),
	})
}

// MQTTPublisher publishes observations to a broker.
type MQTTPublisher struct {
	client paho.Client
	topic  string
}

// NewMQTTPublisher connects to broker and returns a publisher for topic.
func NewMQTTPublisher(broker, clientID, topic string) (*MQTTPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		// Connect retry keeps dialing in the background until disconnected.
		client.Disconnect(0)
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &MQTTPublisher{
		client: client,
		topic:  topic,
	}, nil
}

// Publish sends obs to the topic. QoS 1 and retained, so late subscribers get the latest row.
func (p *MQTTPublisher) Publish(obs earwax.Observation) error {
	payload, err := FormatPayload(obs)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	token := p.client.Publish(p.topic, 1, true, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
