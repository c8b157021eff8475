package announce

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client      paho.Client
	topicPrefix string
}

// NewRealPublisher creates a publisher connected to the given broker.
func NewRealPublisher(broker, clientID, topicPrefix string) (*RealPublisher, error) {
	if clientID == "" {
		clientID = "pinwatch"
	}
	if topicPrefix == "" {
		topicPrefix = DefaultTopicPrefix
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &RealPublisher{client: client, topicPrefix: topicPrefix}, nil
}

// PublishTool sends a retained tool announcement. It does not wait for
// broker acknowledgement; delivery is best effort.
func (p *RealPublisher) PublishTool(watcher string, tool int) error {
	payload, err := FormatPayload(watcher, tool, time.Now())
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	topic := p.topicPrefix + "/" + watcher + "/current_tool"
	p.client.Publish(topic, 0, true, payload)
	return nil
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
