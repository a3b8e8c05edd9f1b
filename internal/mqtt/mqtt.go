package mqtt

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"
)

// Config for the broker connection. An empty Host disables MQTT entirely.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	ClientID string
}

const (
	connectTimeout    = 10 * time.Second
	maxConnectRetries = 5
	disconnectQuiesce = 250 // ms
)

// Connect dials the broker with exponential-backoff retries and ties the
// connection's lifetime to ctx.
func Connect(ctx context.Context, cfg Config) (paho.Client, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetAutoReconnect(true)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	var client paho.Client
	err := backoff.Retry(func() error {
		client = paho.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return token.Error()
		}
		return nil
	}, backoff.WithMaxRetries(backoff.WithContext(bo, ctx), maxConnectRetries-1))
	if err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	go func() {
		<-ctx.Done()
		client.Disconnect(disconnectQuiesce)
	}()

	return client, nil
}
