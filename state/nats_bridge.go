package state

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/autoqac-go/autoqac/model"
)

// NATSBridge fans the Hub's published streams out to NATS subjects under
// "autoqac.>" so an out-of-process presentation layer can observe a session
// without this module depending on any UI toolkit (spec §1 lists the
// presentation layer as out of scope; the transport it could use is not).
//
// Publication is best-effort: a disconnected or slow NATS server never
// blocks or fails a cleaning session, mirroring the Hub's own
// "update_state never fails" contract.
type NATSBridge struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewNATSBridge dials url and returns a bridge, or nil with an error if the
// server is unreachable. Callers that want to run without remote observers
// simply skip calling Hub.WithNATSBridge.
func NewNATSBridge(url string, logger *slog.Logger) (*NATSBridge, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url, nats.Name("autoqac"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, err
	}
	return &NATSBridge{conn: conn, logger: logger}, nil
}

// Close drains and closes the underlying connection.
func (b *NATSBridge) Close() {
	if b == nil || b.conn == nil {
		return
	}
	_ = b.conn.Drain()
}

func (b *NATSBridge) publish(subject string, v any) {
	if b == nil || b.conn == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		b.logger.Warn("nats bridge: marshal failed", "subject", subject, "error", err)
		return
	}
	if err := b.conn.Publish(subject, data); err != nil {
		b.logger.Warn("nats bridge: publish failed", "subject", subject, "error", err)
	}
}

// PublishStateChanged mirrors a state_changed snapshot to "autoqac.state".
func (b *NATSBridge) PublishStateChanged(s AppState) {
	b.publish("autoqac.state", s)
}

// PublishDetailedResult mirrors a detailed_plugin_result event to
// "autoqac.result".
func (b *NATSBridge) PublishDetailedResult(r model.PluginResult) {
	b.publish("autoqac.result", r)
}

// PublishCleaningCompleted mirrors a cleaning_completed event to
// "autoqac.completed".
func (b *NATSBridge) PublishCleaningCompleted(r model.SessionResult) {
	b.publish("autoqac.completed", r)
}
