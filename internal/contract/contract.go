// Package contract implements the universal agent directive: every
// submission is validated against the "no signal, no second chance"
// rule, and the agent's fate (survival, warning, watch, or
// termination) is decided per cycle. The contract and the economy
// describe the same agent; fate decisions mutate both through this
// package's single coordinating path.
package contract

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"llmpagerank/internal/config"
	"llmpagerank/internal/economy"
	"llmpagerank/internal/logging"
	"llmpagerank/internal/store"
	"llmpagerank/internal/survival"
	"llmpagerank/internal/types"
)

// Directive errors. Unlike the economy path, an unregistered agent
// here is a caller bug and is surfaced, not healed.
var (
	ErrAgentNotRegistered = errors.New("agent not registered in directive contract")
	ErrAlreadyTerminated  = errors.New("agent already terminated")
)

// Cookies credited directly on a survival fate.
const survivalBonus = 5

// PerformanceEntry is one ring-buffer entry of an agent's recent
// validation results.
type PerformanceEntry struct {
	Cycle           int               `json:"cycle"`
	Timestamp       time.Time         `json:"timestamp"`
	InsightQuality  float64           `json:"insight_quality"`
	InsightType     types.InsightType `json:"insight_type"`
	Actionable      bool              `json:"actionable"`
	EngagementValid bool              `json:"engagement_valid"`
}

// Contract is one agent's directive contract.
type Contract struct {
	AgentName           string             `json:"agent_name"`
	Domain              string             `json:"domain"`
	InsightType         types.InsightType  `json:"insight_type"`
	Status              types.AgentStatus  `json:"status"`
	CreationDate        time.Time          `json:"creation_date"`
	CyclesCompleted     int                `json:"cycles_completed"`
	ConsecutiveFailures int                `json:"consecutive_failures"`
	TerminationWarnings int                `json:"termination_warnings"`
	LastEngagement      *time.Time         `json:"last_engagement,omitempty"`
	LastInsight         *time.Time         `json:"last_insight,omitempty"`
	PerformanceHistory  []PerformanceEntry `json:"performance_history,omitempty"`
}

// TerminationEvent is one append-only termination log entry.
type TerminationEvent struct {
	AgentName       string              `json:"agent_name"`
	TerminationDate time.Time           `json:"termination_date"`
	Reason          string              `json:"reason"`
	CyclesCompleted int                 `json:"cycles_completed"`
	LastEngagement  *time.Time          `json:"last_engagement,omitempty"`
	Summary         *PerformanceSummary `json:"performance_summary,omitempty"`
}

// Directive owns all agent contracts and the termination log.
type Directive struct {
	mu  sync.Mutex
	cfg config.DirectiveConfig
	st  store.Store
	eco *economy.Economy
	sur *survival.Evaluator
	now func() time.Time

	contracts    map[string]*Contract
	terminations []TerminationEvent
}

// Option customizes a Directive.
type Option func(*Directive)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Directive) { d.now = now }
}

// New builds a Directive over the given collaborators, restoring
// persisted contracts and the termination log.
func New(cfg config.DirectiveConfig, st store.Store, eco *economy.Economy, sur *survival.Evaluator, opts ...Option) (*Directive, error) {
	d := &Directive{
		cfg:       cfg,
		st:        st,
		eco:       eco,
		sur:       sur,
		now:       time.Now,
		contracts: make(map[string]*Contract),
	}
	for _, opt := range opts {
		opt(d)
	}

	records, err := st.ListByPrefix(store.PrefixContract)
	if err != nil {
		return nil, err
	}
	for _, data := range records {
		var c Contract
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		d.contracts[c.AgentName] = &c
	}

	entries, err := st.ReadLog(store.StreamTerminations)
	if err != nil {
		return nil, err
	}
	for _, data := range entries {
		var ev TerminationEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		d.terminations = append(d.terminations, ev)
	}
	return d, nil
}

// RegisterAgentContract registers an agent under the directive and,
// in the same coordinated call, with the cookie economy.
func (d *Directive) RegisterAgentContract(agentName, domain string, insightType types.InsightType) *Contract {
	d.mu.Lock()
	c := &Contract{
		AgentName:    agentName,
		Domain:       domain,
		InsightType:  insightType,
		Status:       types.StatusActive,
		CreationDate: d.now(),
	}
	d.contracts[agentName] = c
	d.saveContractLocked(agentName)
	out := *c
	d.mu.Unlock()

	d.eco.Register(agentName)

	logging.Contract("agent contract registered: %s assigned to %s for %s", agentName, domain, insightType)
	return &out
}

func (d *Directive) saveContractLocked(agentName string) {
	c, ok := d.contracts[agentName]
	if !ok {
		return
	}
	data, err := json.Marshal(c)
	if err != nil {
		return
	}
	if err := d.st.Put(store.PrefixContract+agentName, data); err != nil {
		logging.Get(logging.CategoryStore).Error("failed to persist contract for %s: %v", agentName, err)
	}
}

func (d *Directive) appendTerminationLocked(ev TerminationEvent) {
	d.terminations = append(d.terminations, ev)
	if data, err := json.Marshal(ev); err == nil {
		if err := d.st.Append(store.StreamTerminations, data); err != nil {
			logging.Get(logging.CategoryStore).Error("failed to append termination event: %v", err)
		}
	}
}

// GetContract returns a copy of an agent's contract.
func (d *Directive) GetContract(agentName string) (Contract, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.contracts[agentName]
	if !ok {
		return Contract{}, false
	}
	out := *c
	out.PerformanceHistory = append([]PerformanceEntry(nil), c.PerformanceHistory...)
	return out, true
}

// Terminations returns the termination log.
func (d *Directive) Terminations() []TerminationEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]TerminationEvent(nil), d.terminations...)
}
