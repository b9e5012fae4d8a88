package fleet

import (
	"errors"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/pixelctl/internal/protocol"
	"github.com/rs/zerolog/log"
)

var (
	ErrDeviceNotFound = errors.New("fleet: device not found")
	ErrNilPacket      = errors.New("fleet: firmware packet is nil")
)

// DefaultLogLimit bounds the remote log ring kept per device.
const DefaultLogLimit = 128

// Device is a snapshot of one panel as last reported.
type Device struct {
	Key         string    `json:"key"`
	Hostname    string    `json:"hostname,omitempty"`
	BuildTime   string    `json:"build_time,omitempty"`
	PanelIndex  uint32    `json:"panel_index"`
	FPS         uint32    `json:"fps"`
	ConfigPhash uint32    `json:"config_phash"`
	HasInfo     bool      `json:"has_info"`
	Addr        string    `json:"addr"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	LogCount    int       `json:"log_count"`
}

type LogEntry struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

type entry struct {
	device Device
	logs   []LogEntry
}

// Registry tracks devices by hostname, falling back to source address until
// a device reports its hostname.
type Registry struct {
	mu       sync.RWMutex
	devices  map[string]*entry
	byAddr   map[string]string
	logLimit int

	events *eventHub
}

func NewRegistry(logLimit int) *Registry {
	if logLimit <= 0 {
		logLimit = DefaultLogLimit
	}
	return &Registry{
		devices:  make(map[string]*entry),
		byAddr:   make(map[string]string),
		logLimit: logLimit,
		events:   newEventHub(),
	}
}

// Observe records one FirmwarePacket received from addr at the given time.
func (r *Registry) Observe(from *net.UDPAddr, p *protocol.FirmwarePacket, at time.Time) error {
	if p == nil {
		return ErrNilPacket
	}
	addr := ""
	if from != nil {
		addr = from.String()
	}

	var events []Event
	r.mu.Lock()
	if info := p.FirmwareInfo; info != nil {
		e, joined := r.resolveInfo(addr, info, at)
		applyInfo(&e.device, info)
		kind := EventDeviceInfo
		if joined {
			kind = EventDeviceJoined
		}
		events = append(events, Event{Kind: kind, At: at, Device: e.device})
	}
	if rl := p.RemoteLog; rl != nil {
		e, joined := r.resolveAddr(addr, at)
		le := LogEntry{At: at, Message: strings.TrimSpace(deref(rl.Message))}
		e.appendLog(le, r.logLimit)
		if joined {
			events = append(events, Event{Kind: EventDeviceJoined, At: at, Device: e.device})
		}
		events = append(events, Event{Kind: EventRemoteLog, At: at, Device: e.device, Log: &le})
	}
	if p.FirmwareInfo == nil && p.RemoteLog == nil {
		e, joined := r.resolveAddr(addr, at)
		if joined {
			events = append(events, Event{Kind: EventDeviceJoined, At: at, Device: e.device})
		}
	}
	r.mu.Unlock()

	for _, ev := range events {
		if ev.Kind == EventRemoteLog {
			log.Info().Str("device", ev.Device.Key).Str("remote_log", ev.Log.Message).Msg("device log")
		} else {
			log.Debug().Str("device", ev.Device.Key).Str("event", string(ev.Kind)).Msg("fleet update")
		}
		r.events.publish(ev)
	}
	return nil
}

// resolveInfo finds or creates the entry for a device reporting info. An
// entry previously keyed by address is folded into the hostname entry.
func (r *Registry) resolveInfo(addr string, info *protocol.FirmwareInfo, at time.Time) (*entry, bool) {
	key := strings.TrimSpace(deref(info.Hostname))
	if key == "" {
		return r.resolveAddr(addr, at)
	}

	e, ok := r.devices[key]
	joined := !ok
	if !ok {
		e = &entry{device: Device{Key: key, FirstSeen: at}}
		r.devices[key] = e
	}
	if prev, ok := r.byAddr[addr]; ok && prev != key && prev == addr {
		if orphan, ok := r.devices[prev]; ok {
			e.logs = append(orphan.logs, e.logs...)
			if n := len(e.logs) - r.logLimit; n > 0 {
				e.logs = e.logs[n:]
			}
			if orphan.device.FirstSeen.Before(e.device.FirstSeen) {
				e.device.FirstSeen = orphan.device.FirstSeen
			}
			delete(r.devices, prev)
			joined = false
		}
	}
	if addr != "" {
		r.byAddr[addr] = key
	}
	e.touch(addr, at)
	return e, joined
}

func (r *Registry) resolveAddr(addr string, at time.Time) (*entry, bool) {
	key, ok := r.byAddr[addr]
	if !ok {
		key = addr
	}
	e, ok := r.devices[key]
	joined := !ok
	if !ok {
		e = &entry{device: Device{Key: key, FirstSeen: at}}
		r.devices[key] = e
		r.byAddr[addr] = key
	}
	e.touch(addr, at)
	return e, joined
}

func (e *entry) touch(addr string, at time.Time) {
	if addr != "" {
		e.device.Addr = addr
	}
	if at.After(e.device.LastSeen) {
		e.device.LastSeen = at
	}
	e.device.LogCount = len(e.logs)
}

func (e *entry) appendLog(l LogEntry, limit int) {
	e.logs = append(e.logs, l)
	if n := len(e.logs) - limit; n > 0 {
		e.logs = append(e.logs[:0:0], e.logs[n:]...)
	}
	e.device.LogCount = len(e.logs)
}

func applyInfo(d *Device, info *protocol.FirmwareInfo) {
	d.HasInfo = true
	if info.Hostname != nil {
		d.Hostname = *info.Hostname
	}
	if info.BuildTime != nil {
		d.BuildTime = *info.BuildTime
	}
	if info.PanelIndex != nil {
		d.PanelIndex = *info.PanelIndex
	}
	if info.FPS != nil {
		d.FPS = *info.FPS
	}
	if info.ConfigPhash != nil {
		d.ConfigPhash = *info.ConfigPhash
	}
}

// Devices returns every known device ordered by key.
func (r *Registry) Devices() []Device {
	return r.filter(func(Device) bool { return true })
}

func (r *Registry) Device(key string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.devices[key]
	if !ok {
		return Device{}, false
	}
	return e.device, true
}

// Logs returns a copy of the remote log ring of a device, oldest first.
func (r *Registry) Logs(key string) ([]LogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.devices[key]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	out := make([]LogEntry, len(e.logs))
	copy(out, e.logs)
	return out, nil
}

// Stale returns devices not heard from within after of now.
func (r *Registry) Stale(now time.Time, after time.Duration) []Device {
	return r.filter(func(d Device) bool { return now.Sub(d.LastSeen) > after })
}

// Drifted returns devices whose reported config hash differs from phash.
// Devices that never reported info are not drifted; they are unknown.
func (r *Registry) Drifted(phash uint32) []Device {
	return r.filter(func(d Device) bool { return d.HasInfo && d.ConfigPhash != phash })
}

// Forget drops a device and its logs.
func (r *Registry) Forget(key string) error {
	r.mu.Lock()
	e, ok := r.devices[key]
	if ok {
		delete(r.devices, key)
		for addr, k := range r.byAddr {
			if k == key {
				delete(r.byAddr, addr)
			}
		}
	}
	r.mu.Unlock()
	if !ok {
		return ErrDeviceNotFound
	}
	r.events.publish(Event{Kind: EventDeviceForgotten, At: time.Now(), Device: e.device})
	return nil
}

func (r *Registry) filter(keep func(Device) bool) []Device {
	r.mu.RLock()
	out := make([]Device, 0, len(r.devices))
	for _, e := range r.devices {
		if keep(e.device) {
			out = append(out, e.device)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key < out[j].Key
	})
	return out
}

// Subscribe returns a channel of registry events and a func to cancel it.
// Events are dropped for subscribers that fall behind by more than size.
func (r *Registry) Subscribe(size int) (<-chan Event, func()) {
	return r.events.subscribe(size)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
