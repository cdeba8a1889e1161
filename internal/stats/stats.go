package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"time"

	"github.com/swiftbook-app/swiftbook/internal/types"
)

const (
	metricActiveClients  = "ActiveClients"
	metricActiveRooms    = "ActiveRooms"
	metricMessagesRouted = "MessagesRouted"
	metricFramesDropped  = "FramesDropped"
)

// StatsProvider records chat server activity. Room and message counters are
// kept per room kind (business, dm, group).
type StatsProvider interface {
	ClientConnected()
	ClientDisconnected()
	RoomOpened(kind types.MessageType)
	RoomClosed(kind types.MessageType)
	MessageRouted(kind types.MessageType)
	FrameDropped(kind types.MessageType)
}

// StatsUpdater serializes counter updates through a single goroutine and
// serves the counters as JSON.
type StatsUpdater struct {
	vars       *expvar.Map
	updateChan chan *metricsUpdateReq
}

type metricsUpdateReq struct {
	name  string
	kind  types.MessageType
	value int64
}

func (su *StatsUpdater) expvarHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	expvarData := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var value any
		json.Unmarshal([]byte(kv.Value.String()), &value)
		expvarData[kv.Key] = value
	})

	json.NewEncoder(w).Encode(map[string]any{"swiftbook": expvarData})
}

// NewStatsUpdater creates a new stats updater instance and mounts its
// handler on GET /debug/vars.
func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		updateChan: make(chan *metricsUpdateReq, 512),
		vars:       new(expvar.Map).Init(),
	}
	mux.Handle("GET /debug/vars", http.HandlerFunc(su.expvarHandler))
	su.initializeMetrics()

	return su
}

func (su *StatsUpdater) initializeMetrics() {
	startTime := time.Now()
	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(startTime).Milliseconds()
	}))

	su.vars.Set(metricActiveClients, new(expvar.Int))
	for _, name := range []string{metricActiveRooms, metricMessagesRouted, metricFramesDropped} {
		byKind := new(expvar.Map).Init()
		for _, kind := range []types.MessageType{types.MessageBusiness, types.MessageDirect, types.MessageGroup} {
			byKind.Set(string(kind), new(expvar.Int))
		}
		su.vars.Set(name, byKind)
	}
}

func (su *StatsUpdater) updateMetrics() {
	for req := range su.updateChan {
		switch metric := su.vars.Get(req.name).(type) {
		case *expvar.Int:
			metric.Add(req.value)
		case *expvar.Map:
			metric.Add(string(req.kind), req.value)
		default:
			panic("metric not found: " + req.name)
		}
	}
}

func (su *StatsUpdater) update(name string, kind types.MessageType, value int64) {
	su.updateChan <- &metricsUpdateReq{name: name, kind: kind, value: value}
}

func (su *StatsUpdater) ClientConnected() {
	su.update(metricActiveClients, "", 1)
}

func (su *StatsUpdater) ClientDisconnected() {
	su.update(metricActiveClients, "", -1)
}

func (su *StatsUpdater) RoomOpened(kind types.MessageType) {
	su.update(metricActiveRooms, kind, 1)
}

func (su *StatsUpdater) RoomClosed(kind types.MessageType) {
	su.update(metricActiveRooms, kind, -1)
}

func (su *StatsUpdater) MessageRouted(kind types.MessageType) {
	su.update(metricMessagesRouted, kind, 1)
}

func (su *StatsUpdater) FrameDropped(kind types.MessageType) {
	su.update(metricFramesDropped, kind, 1)
}

func (su *StatsUpdater) Run() {
	go su.updateMetrics()
}

func (su *StatsUpdater) Stop() {
	close(su.updateChan)
}
