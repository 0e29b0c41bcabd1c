// mxl-heartbeat-mqtt periodically publishes each flow's liveness to an
// MQTT broker, so a supervisor can page on a stalled writer without
// polling the domain directory itself.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/mlefebvre1/mxl"
	"github.com/mlefebvre1/mxl/internal/cliconfig"
)

const (
	defaultBroker   = "tcp://localhost:1883"
	defaultInterval = 5 * time.Second
	defaultTopic    = "mxl/heartbeat"
)

func main() {
	domain := flag.String("domain", "", "the MXL domain directory to watch")
	broker := flag.String("broker", defaultBroker, "MQTT broker URL")
	clientID := flag.String("client-id", "mxl-heartbeat-mqtt", "MQTT client id")
	topicPrefix := flag.String("topic", defaultTopic, "MQTT topic prefix; each flow publishes to <topic>/<flow-id>")
	interval := flag.Duration("interval", defaultInterval, "how often to publish a heartbeat for every flow")
	qos := flag.Int("qos", 0, "MQTT publish QoS (0, 1, or 2)")
	configPath := flag.String("config", "", "optional YAML file of flag defaults; explicit flags still win")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *configPath != "" {
		if err := applyConfigDefaults(*configPath, domain, broker, clientID, topicPrefix, interval, qos); err != nil {
			slog.Error("failed to load config file", "error", err, "path", *configPath)
			os.Exit(1)
		}
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	if *domain == "" {
		slog.Error("missing required flag", "flag", "-domain")
		os.Exit(1)
	}

	inst, err := mxl.CreateInstance(*domain, nil)
	if err != nil {
		slog.Error("failed to create mxl instance", "error", err, "domain", *domain)
		os.Exit(1)
	}
	defer inst.Close()

	h := &heartbeater{
		inst:        inst,
		topicPrefix: *topicPrefix,
		qos:         byte(*qos),
	}

	if err := h.connect(*broker, *clientID); err != nil {
		slog.Error("failed to connect to mqtt broker", "error", err, "broker", *broker)
		os.Exit(1)
	}
	defer h.client.Disconnect(250)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	slog.Info("publishing flow heartbeats", "domain", *domain, "broker", *broker, "interval", *interval)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case sig := <-sigChan:
			slog.Info("received shutdown signal", "signal", sig)
			cancel()
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.publishAll()
		}
	}
}

// applyConfigDefaults fills in flags the caller did not pass explicitly from
// a YAML defaults file. Flags actually present on the command line always
// win over the file.
func applyConfigDefaults(path string, domain, broker, clientID, topicPrefix *string, interval *time.Duration, qos *int) error {
	cfg, err := cliconfig.LoadHeartbeatDefaults(path)
	if err != nil {
		return err
	}

	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	if !explicit["domain"] && cfg.Domain != "" {
		*domain = cfg.Domain
	}
	if !explicit["broker"] && cfg.Broker != "" {
		*broker = cfg.Broker
	}
	if !explicit["client-id"] && cfg.ClientID != "" {
		*clientID = cfg.ClientID
	}
	if !explicit["topic"] && cfg.Topic != "" {
		*topicPrefix = cfg.Topic
	}
	if !explicit["interval"] && cfg.Interval != 0 {
		*interval = cfg.Interval
	}
	if !explicit["qos"] && cfg.QoS != 0 {
		*qos = cfg.QoS
	}
	return nil
}

// heartbeatPayload is what each flow publishes: whether a writer currently
// holds the flow active, and how long ago it last wrote.
type heartbeatPayload struct {
	FlowID        uuid.UUID `json:"flow_id"`
	Active        bool      `json:"active"`
	LastWriteTime uint64    `json:"last_write_time_ns"`
	ObservedAtNs  uint64    `json:"observed_at_ns"`
}

type heartbeater struct {
	inst        *mxl.Instance
	client      mqtt.Client
	topicPrefix string
	qos         byte

	mu        sync.Mutex
	published uint64
	errors    uint64
}

func (h *heartbeater) connect(broker, clientID string) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		slog.Info("mqtt connection established", "broker", broker, "client_id", clientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		slog.Warn("mqtt connection lost, will auto-reconnect", "error", err, "broker", broker)
	}

	h.client = mqtt.NewClient(opts)
	token := h.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt connection timeout")
	}
	return token.Error()
}

func (h *heartbeater) publishAll() {
	ids, err := h.inst.ListFlows()
	if err != nil {
		slog.Error("failed to list flows", "error", err)
		return
	}

	now := time.Now().UnixNano()
	for _, id := range ids {
		active, err := h.inst.IsFlowActive(id)
		if err != nil {
			slog.Warn("failed to check flow liveness", "flow_id", id, "error", err)
			continue
		}

		var lastWrite uint64
		if r, err := h.inst.CreateFlowReader(id); err == nil {
			lastWrite = r.GetInfo().LastWriteTime
			r.Close()
		}

		h.publish(heartbeatPayload{
			FlowID:        id,
			Active:        active,
			LastWriteTime: lastWrite,
			ObservedAtNs:  uint64(now),
		})
	}
}

func (h *heartbeater) publish(p heartbeatPayload) {
	payload, err := json.Marshal(p)
	if err != nil {
		slog.Error("failed to marshal heartbeat", "flow_id", p.FlowID, "error", err)
		return
	}

	topic := fmt.Sprintf("%s/%s", h.topicPrefix, p.FlowID)
	token := h.client.Publish(topic, h.qos, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		h.recordError()
		slog.Warn("publish timeout", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		h.recordError()
		slog.Warn("publish failed", "topic", topic, "error", err)
		return
	}

	h.mu.Lock()
	h.published++
	h.mu.Unlock()
	slog.Debug("heartbeat published", "topic", topic, "active", p.Active)
}

func (h *heartbeater) recordError() {
	h.mu.Lock()
	h.errors++
	h.mu.Unlock()
}
