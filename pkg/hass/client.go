package hass

import (
	"crypto/tls"
	"fmt"
	"strings"
	"sync"

	"github.com/cyclopcam/logs"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

type publisher interface {
	publish(topic string, retained bool, payload []byte) error
}

// Client owns the MQTT connection for one Home Assistant device
type Client struct {
	Log      logs.Log
	Device   DeviceInfo
	settings Settings
	pub      publisher
	conn     mqtt.Client // nil in unit tests

	lock    sync.Mutex
	sensors []*Sensor
	closed  bool
}

// Connect to the MQTT broker, and announce the device as online.
// The connection is maintained in the background, and on every reconnect
// the device availability and all sensor configs are republished.
func Connect(log logs.Log, settings Settings, device DeviceInfo) (*Client, error) {
	settings.setDefaults()
	if settings.ClientID == "" {
		settings.ClientID = TopicName(device.Name) + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}
	c := newClient(log, settings, device, nil)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(settings.BrokerURL)
	opts.SetClientID(settings.ClientID)
	if settings.Username != "" {
		opts.SetUsername(settings.Username)
		opts.SetPassword(settings.Password)
	}
	if strings.HasPrefix(settings.BrokerURL, "ssl://") || strings.HasPrefix(settings.BrokerURL, "tls://") {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.SetConnectTimeout(settings.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetWill(c.AvailabilityTopic(), PayloadOffline, 1, true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		c.onConnect()
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warnf("MQTT connection lost: %v", err)
	})

	conn := mqtt.NewClient(opts)
	token := conn.Connect()
	if !token.WaitTimeout(settings.ConnectTimeout) {
		conn.Disconnect(0)
		return nil, fmt.Errorf("Timed out connecting to MQTT broker %v", settings.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("Failed to connect to MQTT broker %v: %w", settings.BrokerURL, err)
	}
	c.lock.Lock()
	c.conn = conn
	c.pub = &pahoPublisher{conn: conn, settings: &c.settings}
	c.lock.Unlock()
	// The first OnConnect may have raced with the assignment of c.pub above
	if err := c.announce(); err != nil {
		conn.Disconnect(250)
		return nil, err
	}
	log.Infof("Connected to MQTT broker %v as %v", settings.BrokerURL, settings.ClientID)
	return c, nil
}

func newClient(log logs.Log, settings Settings, device DeviceInfo, pub publisher) *Client {
	settings.setDefaults()
	return &Client{
		Log:      log,
		Device:   device,
		settings: settings,
		pub:      pub,
	}
}

func (c *Client) AvailabilityTopic() string {
	return availabilityTopic(c.settings.StatePrefix, &c.Device)
}

func (c *Client) onConnect() {
	c.lock.Lock()
	ready := c.pub != nil
	c.lock.Unlock()
	if !ready {
		return
	}
	if err := c.announce(); err != nil {
		c.Log.Errorf("Failed to announce device after reconnect: %v", err)
	}
}

// announce publishes our availability, and the discovery config and latest values of every sensor
func (c *Client) announce() error {
	if err := c.pub.publish(c.AvailabilityTopic(), true, []byte(PayloadOnline)); err != nil {
		return fmt.Errorf("Failed to publish availability: %w", err)
	}
	c.lock.Lock()
	sensors := append([]*Sensor(nil), c.sensors...)
	c.lock.Unlock()
	for _, s := range sensors {
		if err := s.republish(); err != nil {
			return err
		}
	}
	return nil
}

// NewSensor registers a sensor with Home Assistant, by publishing its discovery config
func (c *Client) NewSensor(info SensorInfo) (*Sensor, error) {
	if info.UniqueID == "" || info.Name == "" {
		return nil, fmt.Errorf("Sensor requires a name and unique id")
	}
	s := &Sensor{
		client: c,
		Info:   info,
	}
	if err := s.publishConfig(); err != nil {
		return nil, err
	}
	c.lock.Lock()
	c.sensors = append(c.sensors, s)
	c.lock.Unlock()
	return s, nil
}

// Close marks the device offline and disconnects
func (c *Client) Close() {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return
	}
	c.closed = true
	c.lock.Unlock()

	if err := c.pub.publish(c.AvailabilityTopic(), true, []byte(PayloadOffline)); err != nil {
		c.Log.Warnf("Failed to publish offline availability: %v", err)
	}
	if c.conn != nil {
		c.conn.Disconnect(250)
	}
}

type pahoPublisher struct {
	conn     mqtt.Client
	settings *Settings
}

func (p *pahoPublisher) publish(topic string, retained bool, payload []byte) error {
	token := p.conn.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(p.settings.PublishTimeout) {
		return fmt.Errorf("Timed out publishing to %v", topic)
	}
	return token.Error()
}
