package eltako

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/eltako2mqtt/internal/device"
)

// Command sources, recorded in logs.
const (
	SourceMQTT = "mqtt"
	SourceAPI  = "api"
)

// Outcome classifies what happened to one inbound command.
type Outcome string

// Command outcomes.
const (
	OutcomeSent          Outcome = "sent"
	OutcomeFailed        Outcome = "failed"
	OutcomeSuppressed    Outcome = "suppressed"
	OutcomeRejected      Outcome = "rejected"
	OutcomeUnknownDevice Outcome = "unknown_device"
	OutcomeDropped       Outcome = "dropped"
)

// Logger is the structured logging interface used by the bridge.
// *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// StateObserver is notified with a device snapshot after its state topics
// have been published. Observers are called on the dispatch goroutine and
// must not block.
type StateObserver interface {
	ObserveState(d *device.Device)
}

// RemovalObserver is an optional StateObserver extension told when a pruned
// device leaves the registry.
type RemovalObserver interface {
	ForgetDevice(id string)
}

// Recorder receives bridge metrics. Labels are plain strings so that
// implementations need not import this package.
type Recorder interface {
	CommandHandled(class, outcome string)
	PollCompleted(duration time.Duration, err error)
	StaleUpdates(n int)
	DevicesManaged(n int)
}

type noopRecorder struct{}

func (noopRecorder) CommandHandled(string, string)      {}
func (noopRecorder) PollCompleted(time.Duration, error) {}
func (noopRecorder) StaleUpdates(int)                   {}
func (noopRecorder) DevicesManaged(int)                 {}

// CommandResult reports how one command was handled.
type CommandResult struct {
	CommandID string       `json:"command_id"`
	DeviceID  string       `json:"device_id"`
	Command   string       `json:"command"`
	Wire      WireCommand  `json:"wire,omitempty"`
	Outcome   Outcome      `json:"outcome"`
	State     device.State `json:"state,omitempty"`
}

// Stats is a snapshot of bridge counters.
type Stats struct {
	CommandsReceived   uint64    `json:"commands_received"`
	CommandsSent       uint64    `json:"commands_sent"`
	CommandsFailed     uint64    `json:"commands_failed"`
	CommandsSuppressed uint64    `json:"commands_suppressed"`
	CommandsRejected   uint64    `json:"commands_rejected"`
	CommandsDropped    uint64    `json:"commands_dropped"`
	PollsOK            uint64    `json:"polls_ok"`
	PollsFailed        uint64    `json:"polls_failed"`
	StaleUpdates       uint64    `json:"stale_updates"`
	Devices            int       `json:"devices"`
	LastPoll           time.Time `json:"last_poll"`
	LastPollError      string    `json:"last_poll_error,omitempty"`
}

type counters struct {
	received   atomic.Uint64
	sent       atomic.Uint64
	failed     atomic.Uint64
	suppressed atomic.Uint64
	rejected   atomic.Uint64
	dropped    atomic.Uint64
	pollsOK    atomic.Uint64
	pollsFail  atomic.Uint64
	stale      atomic.Uint64
}

type inboundCommand struct {
	deviceID string
	command  string
	source   string
	reply    chan commandReply // nil for fire-and-forget bus commands
}

type commandReply struct {
	result CommandResult
	err    error
}

type pollOutcome struct {
	stamp    uint64
	raw      []device.RawDevice
	err      error
	duration time.Duration
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	Settings   Settings
	MQTTClient MQTTClient
	Gateway    Gateway

	// Registry is optional; a new registry using Settings.RemovalPolicy is
	// created when nil.
	Registry *device.Registry

	Logger    Logger
	Recorder  Recorder
	Observers []StateObserver
}

// Bridge is the command/state translation engine between MiniSafe2 and MQTT.
//
// All registry and guard mutations run on a single dispatch goroutine fed by
// the command queue, the poll loop and hub availability events.
//
// Thread Safety: All exported methods are safe for concurrent use.
type Bridge struct {
	settings  Settings
	mqtt      MQTTClient
	gateway   Gateway
	registry  *device.Registry
	codec     *Codec
	guard     *Guard
	health    *HealthReporter
	recorder  Recorder
	observers []StateObserver

	commands  chan inboundCommand
	polls     chan pollOutcome
	hubOnline chan struct{}
	started   atomic.Bool

	// queueMu orders enqueue against closing the queue, so nothing is
	// queued after the final drain.
	queueMu   sync.Mutex
	accepting bool

	// stateCache holds the last published value per device and field.
	// Owned by the dispatch goroutine.
	stateCache map[string]map[string]string

	counters    counters
	lastPollMu  sync.RWMutex
	lastPoll    time.Time
	lastPollErr string

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Gateway == nil {
		return nil, fmt.Errorf("gateway client is required")
	}

	s := opts.Settings.withDefaults()

	registry := opts.Registry
	if registry == nil {
		registry = device.NewRegistry(s.RemovalPolicy)
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}

	b := &Bridge{
		settings:   s,
		mqtt:       opts.MQTTClient,
		gateway:    opts.Gateway,
		registry:   registry,
		codec:      NewCodec(s.DimmerScale),
		guard:      NewGuard(s.DebounceWindow, s.DebounceClasses),
		recorder:   recorder,
		observers:  opts.Observers,
		commands:   make(chan inboundCommand, s.QueueSize),
		polls:      make(chan pollOutcome, 1),
		hubOnline:  make(chan struct{}, 1),
		stateCache: make(map[string]map[string]string),
		done:       make(chan struct{}),
		logger:     opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:    s.Topics.Namespace,
		Version:     s.Version,
		GatewayHost: s.GatewayHost,
		Topic:       s.Topics.BridgeHealth(),
		Interval:    s.HealthInterval,
		QoS:         s.QoS,
		Publisher:   opts.MQTTClient,
		Source:      b,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
		registry.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start subscribes to command and hub status topics, then starts the
// dispatch loop, the poll loop and health reporting. The first poll runs
// immediately.
func (b *Bridge) Start(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return fmt.Errorf("bridge already started")
	}
	b.ctx, b.ctxCancel = context.WithCancel(ctx)

	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	commandTopic := b.settings.Topics.AllDeviceCommands()
	if err := b.mqtt.Subscribe(commandTopic, b.settings.QoS, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	if err := b.mqtt.Subscribe(b.settings.HubStatusTopic, b.settings.QoS, b.handleHubStatus); err != nil {
		return fmt.Errorf("subscribe to hub status: %w", err)
	}
	b.logInfo("subscribed to hub status", "topic", b.settings.HubStatusTopic)

	b.setAccepting(true)

	b.wg.Add(2)
	go b.dispatchLoop(b.ctx)
	go b.pollLoop(b.ctx)

	b.health.Start(b.ctx)

	b.logInfo("bridge started",
		"namespace", b.settings.Topics.Namespace,
		"poll_interval", b.settings.PollInterval,
		"debounce_window", b.settings.DebounceWindow,
		"dimmer_scale", b.settings.DimmerScale)
	return nil
}

// Stop gracefully shuts down the bridge. New commands are refused, an
// in-flight gateway command is allowed to finish or time out, and a
// poll in progress is cancelled.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.setAccepting(false)
		close(b.done)

		if b.ctxCancel != nil {
			b.ctxCancel()
		}

		b.wg.Wait()

		// Publishes "stopping"
		b.health.Stop()

		b.logInfo("bridge stopped")
	})
}

// Submit queues a command for a device and waits for its result.
// It shares the dispatch queue with bus commands.
func (b *Bridge) Submit(ctx context.Context, deviceID, command string) (CommandResult, error) {
	pending := CommandResult{DeviceID: deviceID, Command: command}
	reply := make(chan commandReply, 1)

	if err := b.enqueue(inboundCommand{
		deviceID: deviceID,
		command:  command,
		source:   SourceAPI,
		reply:    reply,
	}); err != nil {
		return pending, err
	}

	// The dispatch loop answers every queued command, draining with
	// ErrStopped on shutdown.
	select {
	case r := <-reply:
		return r.result, r.err
	case <-ctx.Done():
		return pending, ctx.Err()
	}
}

// Device returns a copy of a registry device.
func (b *Bridge) Device(id string) (*device.Device, error) {
	return b.registry.Get(id)
}

// Devices returns copies of all registry devices sorted by ID.
func (b *Bridge) Devices() []*device.Device {
	return b.registry.List()
}

// Stats returns a snapshot of bridge counters.
func (b *Bridge) Stats() Stats {
	b.lastPollMu.RLock()
	lastPoll, lastErr := b.lastPoll, b.lastPollErr
	b.lastPollMu.RUnlock()

	return Stats{
		CommandsReceived:   b.counters.received.Load(),
		CommandsSent:       b.counters.sent.Load(),
		CommandsFailed:     b.counters.failed.Load(),
		CommandsSuppressed: b.counters.suppressed.Load(),
		CommandsRejected:   b.counters.rejected.Load(),
		CommandsDropped:    b.counters.dropped.Load(),
		PollsOK:            b.counters.pollsOK.Load(),
		PollsFailed:        b.counters.pollsFail.Load(),
		StaleUpdates:       b.counters.stale.Load(),
		Devices:            b.registry.Count(),
		LastPoll:           lastPoll,
		LastPollError:      lastErr,
	}
}

// Connected reports whether the MQTT side is connected.
func (b *Bridge) Connected() bool {
	return b.mqtt.IsConnected()
}

// handleMQTTMessage queues a bus command. Runs on the MQTT client goroutine.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	id, ok := b.settings.Topics.ParseDeviceCommand(topic)
	if !ok {
		b.logDebug("ignoring message on unexpected topic", "topic", topic)
		return
	}

	err := b.enqueue(inboundCommand{
		deviceID: id,
		command:  string(payload),
		source:   SourceMQTT,
	})
	if err != nil {
		b.logWarn("command not queued", "device_id", id, "error", err)
	}
}

// handleHubStatus schedules a full republish when the hub comes online.
func (b *Bridge) handleHubStatus(_ string, payload []byte) {
	if normalizeCommand(string(payload)) != "online" {
		return
	}
	select {
	case b.hubOnline <- struct{}{}:
	default:
		// A republish is already pending.
	}
}

func (b *Bridge) setAccepting(v bool) {
	b.queueMu.Lock()
	b.accepting = v
	b.queueMu.Unlock()
}

func (b *Bridge) enqueue(in inboundCommand) error {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()

	if !b.accepting {
		return ErrStopped
	}
	select {
	case b.commands <- in:
		return nil
	default:
		b.counters.received.Add(1)
		b.countCommand(device.ClassUnknown, OutcomeDropped)
		return ErrQueueFull
	}
}

// dispatchLoop is the single owner of registry and guard mutations.
func (b *Bridge) dispatchLoop(ctx context.Context) {
	defer b.wg.Done()
	defer func() {
		// The loop may exit on ctx alone; close the queue before draining.
		b.setAccepting(false)
		b.drainCommands()
	}()

	for {
		select {
		case <-b.done:
			return
		case <-ctx.Done():
			return
		case in := <-b.commands:
			res, err := b.handleCommand(ctx, in)
			if in.reply != nil {
				in.reply <- commandReply{result: res, err: err}
			}
		case p := <-b.polls:
			b.applyPoll(p)
		case <-b.hubOnline:
			b.republishAll()
		}
	}
}

// drainCommands refuses everything still queued once the loop has exited.
func (b *Bridge) drainCommands() {
	for {
		select {
		case in := <-b.commands:
			if in.reply != nil {
				in.reply <- commandReply{
					result: CommandResult{DeviceID: in.deviceID, Command: in.command},
					err:    ErrStopped,
				}
			}
		default:
			return
		}
	}
}

// handleCommand runs one command through guard, codec and gateway.
func (b *Bridge) handleCommand(ctx context.Context, in inboundCommand) (CommandResult, error) {
	res := CommandResult{
		CommandID: uuid.NewString(),
		DeviceID:  in.deviceID,
		Command:   in.command,
	}
	fields := []any{"command_id", res.CommandID, "device_id", in.deviceID, "source", in.source}
	b.counters.received.Add(1)

	d, err := b.registry.Get(in.deviceID)
	if err != nil {
		res.Outcome = OutcomeUnknownDevice
		b.countCommand(device.ClassUnknown, res.Outcome)
		b.logWarn("command for unknown device", fields...)
		return res, fmt.Errorf("%w: %s", ErrUnknownDevice, in.deviceID)
	}
	fields = append(fields, "class", d.Class.String())

	if b.guard.Check(d, in.command) == Suppress {
		res.Outcome = OutcomeSuppressed
		b.countCommand(d.Class, res.Outcome)
		b.logInfo("command suppressed", append(fields,
			"command", strings.TrimSpace(in.command),
			"window", b.settings.DebounceWindow)...)
		return res, ErrSuppressed
	}

	wire, err := b.codec.Encode(d, in.command)
	if err != nil {
		res.Outcome = OutcomeRejected
		b.countCommand(d.Class, res.Outcome)
		b.logWarn("command rejected", append(fields, "command", in.command, "error", err)...)
		return res, err
	}
	res.Wire = wire

	// The command may outlive a Stop; only its own timeout applies.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.settings.CommandTimeout)
	err = b.gateway.SendCommand(sendCtx, d.Address, wire)
	cancel()
	if err != nil {
		if !errors.Is(err, ErrGateway) {
			err = fmt.Errorf("%w: %w", ErrGateway, err)
		}
		res.Outcome = OutcomeFailed
		b.countCommand(d.Class, res.Outcome)
		b.logError("gateway command failed", err, append(fields, "wire", string(wire))...)
		return res, err
	}

	res.Outcome = OutcomeSent
	b.countCommand(d.Class, res.Outcome)

	st, err := b.codec.Decode(d, wire)
	if err != nil {
		b.logError("optimistic decode failed", err, fields...)
		return res, nil
	}
	updated, err := b.registry.ApplyCommand(d.ID, st)
	if err != nil {
		b.logWarn("optimistic update skipped", append(fields, "error", err)...)
		return res, nil
	}
	res.State = updated.State

	b.publishDevice(updated, false)
	b.logInfo("command sent", append(fields, "wire", string(wire))...)
	return res, nil
}

func (b *Bridge) countCommand(class device.Class, outcome Outcome) {
	switch outcome {
	case OutcomeSent:
		b.counters.sent.Add(1)
	case OutcomeFailed:
		b.counters.failed.Add(1)
	case OutcomeSuppressed:
		b.counters.suppressed.Add(1)
	case OutcomeRejected, OutcomeUnknownDevice:
		b.counters.rejected.Add(1)
	case OutcomeDropped:
		b.counters.dropped.Add(1)
	}
	b.recorder.CommandHandled(class.String(), string(outcome))
}

// pollLoop fetches gateway state on every interval and hands the result
// to the dispatch loop.
func (b *Bridge) pollLoop(ctx context.Context) {
	defer b.wg.Done()

	b.pollOnce(ctx)

	ticker := time.NewTicker(b.settings.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.pollOnce(ctx)
		}
	}
}

func (b *Bridge) pollOnce(ctx context.Context) {
	stamp := b.registry.BeginPoll()
	start := time.Now()

	pollCtx, cancel := context.WithTimeout(ctx, b.settings.PollTimeout)
	raw, err := b.gateway.FetchStates(pollCtx)
	cancel()

	out := pollOutcome{stamp: stamp, raw: raw, err: err, duration: time.Since(start)}
	select {
	case b.polls <- out:
	case <-b.done:
	case <-ctx.Done():
	}
}

// applyPoll merges a poll result and publishes what changed.
func (b *Bridge) applyPoll(p pollOutcome) {
	b.recorder.PollCompleted(p.duration, p.err)
	firstPoll := b.counters.pollsOK.Load()+b.counters.pollsFail.Load() == 0

	if p.err != nil {
		b.counters.pollsFail.Add(1)
		b.setLastPoll(p.err)
		b.logError("gateway poll failed", p.err, "duration", p.duration)
		if firstPoll {
			b.publishHealth()
		}
		return
	}
	b.counters.pollsOK.Add(1)
	b.setLastPoll(nil)

	res := b.registry.ApplyPoll(p.raw, p.stamp)

	added := make(map[string]struct{}, len(res.Added))
	for _, id := range res.Added {
		added[id] = struct{}{}
	}
	for _, d := range res.Updated {
		if _, ok := added[d.ID]; ok {
			b.logInfo("device discovered",
				"device_id", d.ID,
				"name", d.Name,
				"class", d.Class.String(),
				"type", d.Type)
			b.publishDiscovery(d)
		}
		b.publishDevice(d, false)
	}

	for _, d := range res.Removed {
		b.removeDevice(d)
	}

	if n := len(res.Stale); n > 0 {
		b.counters.stale.Add(uint64(n))
		b.recorder.StaleUpdates(n)
		b.logDebug("discarded poll state older than command", "devices", res.Stale)
	}

	b.recorder.DevicesManaged(b.registry.Count())
	if firstPoll {
		b.publishHealth()
	}
}

func (b *Bridge) setLastPoll(err error) {
	b.lastPollMu.Lock()
	defer b.lastPollMu.Unlock()
	b.lastPoll = time.Now()
	if err != nil {
		b.lastPollErr = err.Error()
	} else {
		b.lastPollErr = ""
	}
}

func (b *Bridge) publishHealth() {
	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish health", err)
	}
}

// publishDiscovery publishes every discovery descriptor of d retained.
func (b *Bridge) publishDiscovery(d *device.Device) {
	for _, desc := range Discovery(b.settings, d) {
		if err := b.publish(desc.Topic, desc.Payload); err != nil {
			b.logError("failed to publish discovery", err, "device_id", d.ID, "topic", desc.Topic)
		}
	}
}

// publishDevice publishes the state topics of one snapshot. Unchanged values
// are skipped unless force is set.
func (b *Bridge) publishDevice(d *device.Device, force bool) {
	cache := b.stateCache[d.ID]
	if cache == nil {
		cache = make(map[string]string)
		b.stateCache[d.ID] = cache
	}

	changed := false
	for _, v := range StateValues(d, b.settings.DimmerScale) {
		if prev, ok := cache[v.Field]; ok && prev == v.Value && !force {
			continue
		}
		topic := b.settings.Topics.DeviceState(d.ID, v.Field)
		if err := b.publish(topic, []byte(v.Value)); err != nil {
			delete(cache, v.Field)
			b.logError("failed to publish state", err, "device_id", d.ID, "topic", topic)
			continue
		}
		cache[v.Field] = v.Value
		changed = true
	}

	if changed || force {
		for _, obs := range b.observers {
			obs.ObserveState(d)
		}
	}
}

// removeDevice clears the retained discovery and state topics of a pruned device.
func (b *Bridge) removeDevice(d *device.Device) {
	for _, desc := range Discovery(b.settings, d) {
		if err := b.publish(desc.Topic, nil); err != nil {
			b.logError("failed to clear discovery", err, "device_id", d.ID, "topic", desc.Topic)
		}
	}
	for _, v := range StateValues(d, b.settings.DimmerScale) {
		//nolint:errcheck // Best-effort, state topics of a pruned device
		b.publish(b.settings.Topics.DeviceState(d.ID, v.Field), nil)
	}
	b.guard.Forget(d.ID)
	delete(b.stateCache, d.ID)
	for _, obs := range b.observers {
		if ro, ok := obs.(RemovalObserver); ok {
			ro.ForgetDevice(d.ID)
		}
	}
	b.logInfo("device removed", "device_id", d.ID, "name", d.Name)
}

// republishAll sends every descriptor followed by every state.
func (b *Bridge) republishAll() {
	devices := b.registry.List()
	b.logInfo("hub online, republishing", "devices", len(devices))
	for _, d := range devices {
		b.publishDiscovery(d)
	}
	for _, d := range devices {
		b.publishDevice(d, true)
	}
}

func (b *Bridge) publish(topic string, payload []byte) error {
	return b.mqtt.Publish(topic, payload, b.settings.QoS, true)
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
