package modules

import (
	"context"
	"encoding/json"

	"eventspool/internal/events"
	"eventspool/internal/policy"
)

type policyEnforcer struct {
	pstore *policy.Store
	list   ProcessLister
}

// NewPolicyEnforcer reports a policy_violation for every running process
// whose name matches a block_process rule.
func NewPolicyEnforcer(ps *policy.Store, list ProcessLister) Module {
	if list == nil {
		list = SystemProcesses
	}
	return &policyEnforcer{pstore: ps, list: list}
}

func (m *policyEnforcer) Name() string { return "policy_enforcer" }

func (m *policyEnforcer) Run(ctx context.Context) ([]events.Event, error) {
	rules := m.pstore.Get().Rules(policy.RuleBlockProcess)
	if len(rules) == 0 {
		return nil, nil
	}
	procs, err := m.list(ctx)
	if err != nil {
		return nil, err
	}
	var evts []events.Event
	for _, r := range rules {
		for _, p := range procs {
			if p.Name != r.Match {
				continue
			}
			payload, err := json.Marshal(map[string]any{
				"policy_id": r.PolicyID,
				"rule_id":   r.ID,
				"action":    r.Action,
				"process":   map[string]any{"name": p.Name, "pid": p.PID},
			})
			if err != nil {
				return nil, err
			}
			evts = append(evts, events.New("policy_violation", string(payload)))
		}
	}
	return evts, nil
}
