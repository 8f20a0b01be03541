// motorsim publishes synthetic three-phase motor telemetry to an MQTT
// broker.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/motortwin/internal/logger"
	"codeberg.org/mutker/motortwin/internal/transport"
	"github.com/spf13/pflag"
)

type payload struct {
	Timestamp   string  `json:"timestamp"`
	Status      string  `json:"motor_condition"`
	Speed       float64 `json:"speed"`
	Temperature float64 `json:"temperature"`
	CurrentU    float64 `json:"current_u"`
	CurrentV    float64 `json:"current_v"`
	CurrentW    float64 `json:"current_w"`
	VoltageU    float64 `json:"voltage_u"`
	VoltageV    float64 `json:"voltage_v"`
	VoltageW    float64 `json:"voltage_w"`
	VibrationX  float64 `json:"vibration_x"`
	VibrationY  float64 `json:"vibration_y"`
	VibrationZ  float64 `json:"vibration_z"`
}

type motor struct {
	speed       float64
	temperature float64
	angle       float64
	elapsed     time.Duration
}

const (
	targetSpeed    = 1500.0
	peakCurrent    = 4.0
	peakVoltage    = 24.0
	ambient        = 22.0
	overheatLimit  = 80.0
	phaseOffset    = 2 * math.Pi / 3
	heatingPerSec  = 0.05
	coolingPerSec  = 0.01
	speedWobbleRPM = 40.0
)

func (m *motor) step(dt time.Duration) payload {
	m.elapsed += dt
	secs := dt.Seconds()

	m.speed = targetSpeed + speedWobbleRPM*math.Sin(m.elapsed.Seconds()/5)
	m.temperature += heatingPerSec*secs - coolingPerSec*(m.temperature-ambient)*secs
	m.angle = math.Mod(m.angle+2*math.Pi*(m.speed/60)*secs, 2*math.Pi)

	status := "NORMAL"
	if m.temperature > overheatLimit {
		status = "E_OVERHEAT"
	}

	noise := func(scale float64) float64 { return (rand.Float64()*2 - 1) * scale }

	return payload{
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
		Status:      status,
		Speed:       m.speed,
		Temperature: m.temperature,
		CurrentU:    peakCurrent * math.Sin(m.angle),
		CurrentV:    peakCurrent * math.Sin(m.angle-phaseOffset),
		CurrentW:    peakCurrent * math.Sin(m.angle+phaseOffset),
		VoltageU:    peakVoltage * math.Sin(m.angle),
		VoltageV:    peakVoltage * math.Sin(m.angle-phaseOffset),
		VoltageW:    peakVoltage * math.Sin(m.angle+phaseOffset),
		VibrationX:  noise(0.02),
		VibrationY:  noise(0.02),
		VibrationZ:  noise(0.05),
	}
}

func main() {
	fs := pflag.NewFlagSet("motorsim", pflag.ExitOnError)
	broker := fs.String("broker", "tcp://localhost:1883", "MQTT broker URL")
	topic := fs.String("topic", "motors/1/telemetry", "Topic to publish to")
	interval := fs.Duration("interval", 100*time.Millisecond, "Publish interval")
	temperature := fs.Float64("temperature", ambient, "Starting temperature")
	logLevel := fs.String("log-level", "info", "Log level")
	_ = fs.Parse(os.Args[1:])

	logger.Init(*logLevel, false)

	pub, err := transport.Dial(transport.Options{Broker: *broker, Topic: *topic, QoS: 0})
	if err != nil {
		fmt.Printf("failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := &motor{temperature: *temperature}
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	logger.Info().Str("topic", *topic).Dur("interval", *interval).Msg("Publishing telemetry")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Exiting...")
			return
		case <-ticker.C:
			raw, err := json.Marshal(m.step(*interval))
			if err != nil {
				logger.Error().Err(err).Msg("Failed to encode frame")
				continue
			}
			if err := pub.Publish(raw); err != nil {
				logger.Warn().Err(err).Msg("Failed to publish frame")
			}
		}
	}
}
