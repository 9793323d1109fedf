package policy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const RuleBlockProcess = "block_process"

type Rule struct {
	ID     string `yaml:"id" json:"id"`
	Type   string `yaml:"type" json:"type"`
	Match  string `yaml:"match" json:"match"`
	Action string `yaml:"action" json:"action"`
}

type Policy struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Rules []Rule `yaml:"rules" json:"rules"`
}

type Document struct {
	Version  int      `yaml:"version" json:"version"`
	Policies []Policy `yaml:"policies" json:"policies"`
}

// Default is the detect-only document used until a policy is loaded.
func Default() *Document {
	return &Document{
		Version: 1,
		Policies: []Policy{{
			ID:   "active",
			Name: "default",
			Rules: []Rule{
				{ID: "p1", Type: RuleBlockProcess, Match: "cmd.exe", Action: "alert"},
				{ID: "p2", Type: RuleBlockProcess, Match: "notepad.exe", Action: "alert"},
			},
		}},
	}
}

// Parse decodes and validates a YAML policy document.
func Parse(b []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("policy yaml parse: %w", err)
	}
	if doc.Version < 1 {
		return nil, fmt.Errorf("policy version must be >= 1, got %d", doc.Version)
	}
	for _, p := range doc.Policies {
		if p.ID == "" {
			return nil, fmt.Errorf("policy %q has no id", p.Name)
		}
		for _, r := range p.Rules {
			if r.Type == RuleBlockProcess && r.Match == "" {
				return nil, fmt.Errorf("policy %s rule %s: block_process needs match", p.ID, r.ID)
			}
		}
	}
	return &doc, nil
}

func LoadFile(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Fetch downloads and parses a policy document.
func Fetch(ctx context.Context, url string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("policy fetch returned status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Store holds the active document.
type Store struct {
	mu  sync.RWMutex
	doc *Document
}

func NewStore() *Store { return &Store{doc: Default()} }

func (s *Store) Get() *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

func (s *Store) Set(d *Document) {
	if d == nil {
		return
	}
	s.mu.Lock()
	s.doc = d
	s.mu.Unlock()
}

// Rules returns every rule of the given type across all policies, paired
// with its policy id.
func (d *Document) Rules(typ string) []BoundRule {
	var out []BoundRule
	for _, p := range d.Policies {
		for _, r := range p.Rules {
			if r.Type == typ {
				out = append(out, BoundRule{PolicyID: p.ID, Rule: r})
			}
		}
	}
	return out
}

type BoundRule struct {
	PolicyID string
	Rule
}
