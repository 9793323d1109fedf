package modules

import (
	"context"
	"encoding/json"

	proc "github.com/shirou/gopsutil/process"

	"eventspool/internal/events"
)

// maxProcesses caps the process_list payload.
const maxProcesses = 200

// ProcessInfo is the subset of process data modules report on.
type ProcessInfo struct {
	Name string `json:"name"`
	PID  int32  `json:"pid"`
	Exe  string `json:"exe,omitempty"`
}

// ProcessLister enumerates running processes.
type ProcessLister func(ctx context.Context) ([]ProcessInfo, error)

// SystemProcesses lists processes via gopsutil.
func SystemProcesses(ctx context.Context) ([]ProcessInfo, error) {
	procs, err := proc.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		name, _ := p.NameWithContext(ctx)
		exe, _ := p.ExeWithContext(ctx)
		out = append(out, ProcessInfo{Name: name, PID: p.Pid, Exe: exe})
	}
	return out, nil
}

type processModule struct {
	list ProcessLister
}

func NewProcessModule(list ProcessLister) Module {
	if list == nil {
		list = SystemProcesses
	}
	return &processModule{list: list}
}

func (m *processModule) Name() string { return "process" }

func (m *processModule) Run(ctx context.Context) ([]events.Event, error) {
	procs, err := m.list(ctx)
	if err != nil {
		return nil, err
	}
	if len(procs) > maxProcesses {
		procs = procs[:maxProcesses]
	}
	b, err := json.Marshal(procs)
	if err != nil {
		return nil, err
	}
	return []events.Event{events.New("process_list", string(b))}, nil
}
