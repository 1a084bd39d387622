// Package scenario drives an overlay through a sequence of steps described
// in YAML, checking expected failures and states along the way.
package scenario

import (
	"errors"
	"fmt"
	"os"

	"go.miragespace.co/can/journal"
	"go.miragespace.co/can/spec/can"

	"gopkg.in/yaml.v3"
)

const Version = 1

type Op string

const (
	OpBootstrap  Op = "bootstrap"
	OpSpawn      Op = "spawn"
	OpJoin       Op = "join"
	OpJoinAt     Op = "joinAt"
	OpAddPeer    Op = "addPeer"
	OpRemovePeer Op = "removePeer"
	OpInsert     Op = "insert"
	OpDelete     Op = "delete"
	OpPlace      Op = "place"
	OpPublish    Op = "publish"
	OpCheck      Op = "check"
)

type Step struct {
	Op   Op     `yaml:"op" json:"op"`
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	// Count repeats join and joinAt, every repetition gets a generated name
	Count   int        `yaml:"count,omitempty" json:"count,omitempty"`
	Via     string     `yaml:"via,omitempty" json:"via,omitempty"`
	Node    string     `yaml:"node,omitempty" json:"node,omitempty"`
	Peer    string     `yaml:"peer,omitempty" json:"peer,omitempty"`
	Zone    *can.Zone  `yaml:"zone,omitempty" json:"zone,omitempty"`
	Point   *can.Point `yaml:"point,omitempty" json:"point,omitempty"`
	Content string     `yaml:"content,omitempty" json:"content,omitempty"`
	Ref     string     `yaml:"ref,omitempty" json:"ref,omitempty"`
	Payload string     `yaml:"payload,omitempty" json:"payload,omitempty"`
	// Peers and Items are only used by check
	Peers []string `yaml:"peers,omitempty" json:"peers,omitempty"`
	Items []string `yaml:"items,omitempty" json:"items,omitempty"`
	// Error is the message of the sentinel error the step must fail with
	Error string `yaml:"error,omitempty" json:"error,omitempty"`
}

type Scenario struct {
	path     string
	Version  int              `yaml:"version" json:"version"`
	Settings journal.Settings `yaml:"settings" json:"settings"`
	Steps    []Step           `yaml:"steps" json:"steps"`
}

func NewScenario(path string) (*Scenario, error) {
	s := &Scenario{
		path:     path,
		Settings: journal.DefaultSettings(),
	}
	if err := s.readFile(); err != nil {
		return nil, err
	}
	if err := s.checkVersion(); err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Parse reads a scenario from memory, applying the same checks as NewScenario.
func Parse(buf []byte) (*Scenario, error) {
	s := &Scenario{
		Settings: journal.DefaultSettings(),
	}
	if err := yaml.Unmarshal(buf, s); err != nil {
		return nil, fmt.Errorf("error decoding scenario: %w", err)
	}
	if err := s.checkVersion(); err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scenario) readFile() error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("error opening scenario file for reading: %w", err)
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(s); err != nil {
		return fmt.Errorf("error decoding scenario file: %w", err)
	}
	return nil
}

func (s *Scenario) checkVersion() error {
	if s.Version != Version {
		return fmt.Errorf("expecting scenario version %d, got %v", Version, s.Version)
	}
	return nil
}

func (s *Scenario) validate() error {
	if err := s.Settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
	}
	return nil
}

func (st Step) validate() error {
	if st.Count < 0 {
		return fmt.Errorf("negative count")
	}
	if st.Count > 1 && st.Name != "" {
		return fmt.Errorf("name cannot be combined with count")
	}
	if st.Error != "" {
		if e := errors.New(st.Error); can.ErrorMapper(e) == e {
			return fmt.Errorf("unknown error %q", st.Error)
		}
	}
	switch st.Op {
	case OpBootstrap:
	case OpSpawn:
		if st.Zone == nil {
			return fmt.Errorf("missing zone")
		}
	case OpJoin:
		if st.Via == "" {
			return fmt.Errorf("missing via")
		}
	case OpJoinAt:
		if st.Point == nil {
			return fmt.Errorf("missing point")
		}
	case OpAddPeer, OpRemovePeer:
		if st.Node == "" || st.Peer == "" {
			return fmt.Errorf("missing node or peer")
		}
	case OpInsert:
		if st.Node == "" || st.Content == "" || st.Ref == "" {
			return fmt.Errorf("missing node, content or ref")
		}
	case OpDelete:
		if st.Node == "" || st.Content == "" {
			return fmt.Errorf("missing node or content")
		}
	case OpPlace, OpPublish:
		if st.Content == "" || st.Ref == "" {
			return fmt.Errorf("missing content or ref")
		}
	case OpCheck:
		if st.Node == "" {
			return fmt.Errorf("missing node")
		}
	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}
	return nil
}
