// Package transport connects the pipeline to an MQTT broker.
package transport

import (
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultRetryInterval  = 5 * time.Second
	disconnectQuiesce     = 250
)

type Options struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	Topic          string
	QoS            byte
	ConnectTimeout time.Duration
	RetryInterval  time.Duration
}

// ClientIDOrRandom returns the configured client id, or a random one
// with the given prefix.
func (o Options) ClientIDOrRandom(prefix string) string {
	if o.ClientID != "" {
		return o.ClientID
	}
	return prefix + "-" + uuid.NewString()
}

func (o Options) connectTimeout() time.Duration {
	if o.ConnectTimeout > 0 {
		return o.ConnectTimeout
	}
	return DefaultConnectTimeout
}

func (o Options) retryInterval() time.Duration {
	if o.RetryInterval > 0 {
		return o.RetryInterval
	}
	return DefaultRetryInterval
}

func (o Options) clientOptions(clientID string) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(clientID)
	if o.Username != "" {
		opts.SetUsername(o.Username)
	}
	if o.Password != "" {
		opts.SetPassword(o.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(o.connectTimeout())
	opts.SetOrderMatters(true)

	return opts
}
