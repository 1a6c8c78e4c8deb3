package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/blinky-buzzer/internal/command"
	"github.com/sweeney/blinky-buzzer/internal/logging"
)

// CommandHandler receives decoded commands. It runs on a paho goroutine and
// must hand the command off without touching the scheduler.
type CommandHandler func(command.Command)

// RealPublisher publishes to an actual MQTT broker and subscribes the command topic.
// Messages published while the connection is down are buffered and replayed.
type RealPublisher struct {
	client    paho.Client
	topics    Topics
	onCommand CommandHandler

	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealPublisher creates a publisher for the device name on broker.
// An unreachable broker is not an error: the client keeps retrying in the
// background and messages are buffered until it connects.
func NewRealPublisher(broker, name string, onCommand CommandHandler) (*RealPublisher, error) {
	p := &RealPublisher{
		topics:    TopicsFor(name),
		onCommand: onCommand,
		buf:       newRingBuffer(bufferCapacity),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(name).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(p.topics.System, will, 1, true).
		SetOnConnectHandler(p.handleConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logging.Warnf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		logging.Warnf("mqtt: %s not reachable yet, retrying in background", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// Publish sends an indicator transition. QoS 0, not retained, never waits.
func (p *RealPublisher) Publish(event Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	p.send(bufferedMsg{topic: p.topics.Events, payload: payload})
	return nil
}

// PublishSystem sends a system lifecycle event with QoS 1 and waits for the broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	msg := bufferedMsg{topic: p.topics.System, payload: payload, qos: 1, retained: event.Retained}
	token := p.send(msg)
	if token == nil {
		return nil
	}
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// IsConnected reports whether the client currently has a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

// send publishes msg, or buffers it and returns nil while disconnected.
func (p *RealPublisher) send(msg bufferedMsg) paho.Token {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		return nil
	}
	return p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
}

func (p *RealPublisher) handleConnect(c paho.Client) {
	logging.Infof("mqtt: connected")

	if p.onCommand != nil {
		c.Subscribe(p.topics.Command, 1, p.handleMessage)
	}

	p.mu.Lock()
	pending := p.buf.drainAll()
	p.mu.Unlock()
	for _, msg := range pending {
		c.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	}
}

func (p *RealPublisher) handleMessage(_ paho.Client, m paho.Message) {
	cmd, err := command.Decode(m.Payload())
	if err != nil {
		logging.Warnf("mqtt: rejected command on %s: %v", m.Topic(), err)
		return
	}
	logging.Debugf("mqtt: command %s", cmd)
	p.onCommand(cmd)
}
