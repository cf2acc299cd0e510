package dbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/dooshek/nicoverlay/internal/logger"
	"github.com/dooshek/nicoverlay/internal/stats"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

const (
	dbusServiceName = "com.dooshek.nicoverlay"
	dbusObjectPath  = "/com/dooshek/nicoverlay/Overlay"
	dbusInterface   = "com.dooshek.nicoverlay.Overlay"

	signalBuffer = 16
)

// Overlay is the part of the scheduler the bus can drive
type Overlay interface {
	NotifySpike()
	Stats() *stats.Counters
}

type busSignal struct {
	name string
	args []interface{}
}

// Server exposes the overlay on the session bus
type Server struct {
	conn    *dbus.Conn
	overlay Overlay
	signals chan busSignal
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
}

// NewServer creates a new D-Bus server instance
func NewServer(overlay Overlay) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		overlay: overlay,
		signals: make(chan busSignal, signalBuffer),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start starts the D-Bus server
func (s *Server) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	reply, err := conn.RequestName(dbusServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return fmt.Errorf("name already taken")
	}

	err = conn.Export(s, dbusObjectPath, dbusInterface)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to export object: %w", err)
	}

	node := &introspect.Node{
		Name: dbusObjectPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name: dbusInterface,
				Methods: []introspect.Method{
					{
						Name: "TriggerBurst",
					},
					{
						Name: "GetStatus",
						Args: []introspect.Arg{
							{Name: "stats_json", Type: "s", Direction: "out"},
						},
					},
					{
						Name: "ResetStats",
					},
				},
				Signals: []introspect.Signal{
					{Name: "SpikeDetected"},
					{
						Name: "BurstSpawned",
						Args: []introspect.Arg{
							{Name: "count", Type: "i"},
						},
					},
				},
			},
		},
	}

	err = conn.Export(introspect.NewIntrospectable(node), dbusObjectPath, "org.freedesktop.DBus.Introspectable")
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	go s.emitLoop()

	logger.Infof("🔌 D-Bus service started: %s", dbusServiceName)
	return nil
}

// Stop stops the D-Bus server
func (s *Server) Stop() {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
		logger.Infof("🔌 D-Bus service stopped")
	}
}

// TriggerBurst spawns a burst as if the microphone had spiked (D-Bus method)
func (s *Server) TriggerBurst() *dbus.Error {
	logger.Debugf("D-Bus: TriggerBurst called")
	s.overlay.NotifySpike()
	return nil
}

// GetStatus returns the overlay counters as JSON (D-Bus method)
func (s *Server) GetStatus() (string, *dbus.Error) {
	status, err := s.overlay.Stats().GetStatsJSON()
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return status, nil
}

// ResetStats zeroes the counters (D-Bus method)
func (s *Server) ResetStats() *dbus.Error {
	logger.Debugf("D-Bus: ResetStats called")
	s.overlay.Stats().Reset()
	return nil
}

// SpikeDetected queues the SpikeDetected signal. It is called from the audio
// thread and never blocks; signals are dropped when the queue is full.
func (s *Server) SpikeDetected() {
	s.queue(busSignal{name: "SpikeDetected"})
}

// BurstSpawned queues the BurstSpawned signal
func (s *Server) BurstSpawned(count int) {
	s.queue(busSignal{name: "BurstSpawned", args: []interface{}{int32(count)}})
}

func (s *Server) queue(sig busSignal) {
	select {
	case s.signals <- sig:
	default:
		logger.Debugf("D-Bus: signal queue full, dropping %s", sig.name)
	}
}

func (s *Server) emitLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case sig := <-s.signals:
			s.emitSignal(sig.name, sig.args...)
		}
	}
}

// emitSignal emits a D-Bus signal
func (s *Server) emitSignal(name string, args ...interface{}) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		logger.Warnf("D-Bus: Cannot emit signal %s - no connection", name)
		return
	}

	signalPath := dbus.ObjectPath(dbusObjectPath)
	signalName := dbusInterface + "." + name

	if err := conn.Emit(signalPath, signalName, args...); err != nil {
		logger.Errorf("D-Bus: Failed to emit signal %s", err, name)
	} else {
		logger.Debugf("D-Bus: Emitted signal: %s", name)
	}
}
