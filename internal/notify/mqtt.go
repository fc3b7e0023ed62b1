package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
)

const publishTimeout = 5 * time.Second

// Message is the payload published on tv/<board>/commands.
type Message struct {
	Type      string      `json:"type"`
	Board     model.Board `json:"board"`
	Reason    string      `json:"reason"`
	Timestamp time.Time   `json:"timestamp"`
}

// Topic is the command topic a board's displays subscribe to.
func Topic(board model.Board) string {
	return fmt.Sprintf("tv/%s/commands", board)
}

// MQTTNotifier publishes refresh commands to the broker.
type MQTTNotifier struct {
	client mqtt.Client
	now    func() time.Time
}

// NewMQTTNotifier connects to brokerURL. The client reconnects on its own
// after a lost connection.
func NewMQTTNotifier(brokerURL, clientID string) (*MQTTNotifier, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.OnConnect = func(mqtt.Client) {
		log.Info().Str("broker", brokerURL).Msg("connected to MQTT broker")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		log.Warn().Str("broker", brokerURL).Msg("MQTT broker not reachable yet, retrying in background")
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return NewMQTTNotifierWithClient(client), nil
}

func NewMQTTNotifierWithClient(client mqtt.Client) *MQTTNotifier {
	return &MQTTNotifier{client: client, now: time.Now}
}

func (n *MQTTNotifier) BoardChanged(ctx context.Context, board model.Board, reason string) {
	payload, err := json.Marshal(Message{
		Type:      "refresh",
		Board:     board,
		Reason:    reason,
		Timestamp: n.now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Str("board", string(board)).Msg("failed to encode refresh message")
		return
	}

	token := n.client.Publish(Topic(board), 1, false, payload)
	wait := publishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < wait {
			wait = d
		}
	}
	if !token.WaitTimeout(wait) {
		log.Warn().Str("board", string(board)).Msg("timed out publishing refresh message")
		return
	}
	if err := token.Error(); err != nil {
		log.Warn().Err(err).Str("board", string(board)).Msg("failed to publish refresh message")
		return
	}
	log.Debug().Str("board", string(board)).Str("reason", reason).Msg("refresh message sent via MQTT")
}

// Close disconnects from the broker.
func (n *MQTTNotifier) Close() {
	n.client.Disconnect(250)
}
