package modules

import (
	"context"
	"encoding/json"

	cpu "github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"

	"eventspool/internal/events"
)

type sysinfoModule struct{}

func NewSysInfoModule() Module { return &sysinfoModule{} }

func (m *sysinfoModule) Name() string { return "sysinfo" }

func (m *sysinfoModule) Run(ctx context.Context) ([]events.Event, error) {
	h, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, err
	}
	c, _ := cpu.CountsWithContext(ctx, true)
	data := map[string]any{
		"host":      h.Hostname,
		"os":        h.Platform + " " + h.PlatformVersion,
		"uptime":    h.Uptime,
		"cpu_cores": c,
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		data["total_mem"] = vm.Total
		data["used_mem_percent"] = vm.UsedPercent
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return []events.Event{events.New("sysinfo", string(b))}, nil
}
