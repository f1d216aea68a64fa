package wifisim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

// Terminal packet statuses.  The delivered and lost strings appear verbatim
// in the event stream, which downstream consumers parse.
const (
	StatusDelivered  = "delivered"
	StatusLost       = "lost"
	StatusUnroutable = "unroutable"
)

// NameType is an entry in a dictionary created for a trace
// that maps router id numbers to a (name,type) pair
type NameType struct {
	Name string
	Type string
}

// A PcktEvent records one terminal event of a packet: delivery of a reply,
// loss in transit, or a forwarding failure.  One event stream line is
// emitted per record.
type PcktEvent struct {
	Tick       int    `json:"tick" yaml:"tick"`
	Connection string `json:"conn" yaml:"conn"`
	Node       int    `json:"node" yaml:"node"`
	Src        int    `json:"src" yaml:"src"`
	Dst        int    `json:"dest" yaml:"dest"`
	Status     string `json:"status" yaml:"status"`
	Lifetime   int    `json:"lifetime" yaml:"lifetime"`
}

// TraceManager gathers information about an execution of the simulation
// model: the id -> name dictionary of the routers involved and the terminal
// event of every packet.  Events are always collected; the InUse flag only
// gates the trace file output, so the manager can be embedded everywhere
// it is needed and switched off cheaply.
type TraceManager struct {
	// experiment writes a trace file
	InUse bool `json:"inuse" yaml:"inuse"`

	// name of experiment
	ExpName string `json:"expname" yaml:"expname"`

	// text name associated with each router id
	NameByID map[int]NameType `json:"namebyid" yaml:"namebyid"`

	// terminal events of every packet of this experiment
	Events []PcktEvent `json:"events" yaml:"events"`

	// destination of the line-per-event stream
	stream io.Writer
}

// CreateTraceManager is a constructor.  It saves the name of the experiment
// and a flag indicating whether a trace file is wanted.  The event stream
// goes to stdout unless redirected with SetStream.
func CreateTraceManager(expName string, active bool) *TraceManager {
	tm := new(TraceManager)
	tm.InUse = active
	tm.ExpName = expName
	tm.NameByID = make(map[int]NameType)
	tm.Events = make([]PcktEvent, 0)
	tm.stream = os.Stdout
	return tm
}

// Active tells the caller whether a trace file will be written
func (tm *TraceManager) Active() bool {
	return tm.InUse
}

// SetStream redirects the line-per-event stream, e.g. into a buffer under test
func (tm *TraceManager) SetStream(w io.Writer) {
	tm.stream = w
}

// AddName is used to add an element to the id -> (name,type) dictionary
func (tm *TraceManager) AddName(id int, name string, objDesc string) {
	_, present := tm.NameByID[id]
	if present {
		panic("duplicated id in AddName")
	}
	tm.NameByID[id] = NameType{Name: name, Type: objDesc}
}

// AddPcktEvent stores an event record and emits its stream line.  The line
// format is fixed: it is the machine-readable result of a run.
func (tm *TraceManager) AddPcktEvent(tick int, conn string, node, src, dst int, status string, lifetime int) {
	evt := PcktEvent{Tick: tick, Connection: conn, Node: node, Src: src, Dst: dst,
		Status: status, Lifetime: lifetime}
	tm.Events = append(tm.Events, evt)

	fmt.Fprintf(tm.stream, "i=%d conn=%s node=%d src=%d dest=%d status=%s\n",
		tick, conn, node, src, dst, status)
}

// EventsWithStatus returns the stored events carrying the given status
func (tm *TraceManager) EventsWithStatus(status string) []PcktEvent {
	sub := make([]PcktEvent, 0)
	for _, evt := range tm.Events {
		if evt.Status == status {
			sub = append(sub, evt)
		}
	}
	return sub
}

// WriteToFile stores the trace to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (tm *TraceManager) WriteToFile(filename string) bool {
	if !tm.InUse {
		return false
	}
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error = nil

	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(*tm)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(*tm, "", "\t")
	}

	if merr != nil {
		panic(merr)
	}

	f, cerr := os.Create(filename)
	if cerr != nil {
		panic(cerr)
	}
	_, werr := f.WriteString(string(bytes[:]))
	if werr != nil {
		panic(werr)
	}
	f.Close()
	return true
}
