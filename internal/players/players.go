// Package players provides a factory of agents from configuration strings.
// It also allows agent providers to register themselves.
package players

import (
	"io"
	"slices"
	"strings"

	"github.com/janpfeifer/gomokuGo/internal/ai"
	"github.com/janpfeifer/gomokuGo/internal/generics"
	"github.com/janpfeifer/gomokuGo/internal/parameters"
	"github.com/janpfeifer/gomokuGo/internal/rlenv"
	"github.com/pkg/errors"
)

// Spec describes the environment the agent will play in.
type Spec struct {
	InfoStateSize int
	NumActions    int
}

// SpecFromEnv returns the Spec for the given environment.
func SpecFromEnv(env *rlenv.Environment) Spec {
	return Spec{
		InfoStateSize: env.ObservationSpec().InfoStateSize,
		NumActions:    env.ActionSpec().NumActions,
	}
}

// Module must implement NewAgent, called once per player.
// The module should remove from params the parameters it used: any parameter left is reported as an error.
type Module interface {
	NewAgent(playerID int, spec Spec, params parameters.Params) (ai.Agent, error)
}

// ModuleFunc adapts a function to a Module.
type ModuleFunc func(playerID int, spec Spec, params parameters.Params) (ai.Agent, error)

// NewAgent implements Module.
func (fn ModuleFunc) NewAgent(playerID int, spec Spec, params parameters.Params) (ai.Agent, error) {
	return fn(playerID, spec, params)
}

// moduleRegistration is a reference to the module and its name.
type moduleRegistration struct {
	Module
	Name string
}

var (
	// Registered external modules.
	keywordToModules = make(map[string]moduleRegistration)
)

// RegisterModule so it can be used by any of the front-ends.
func RegisterModule(name string, module Module) {
	keywordToModules[name] = moduleRegistration{Name: name, Module: module}
}

// RegisteredModules returns the sorted names of the registered modules.
func RegisteredModules() []string {
	return slices.Collect(generics.SortedKeys(keywordToModules))
}

var (
	// DefaultAgentConfig is used if no configuration was given. The value may be changed by the
	// program.
	DefaultAgentConfig = "dqn"
)

// New creates a new agent given the configuration string.
//
// Args:
//
//	config: the module name followed by a colon (":"), followed by a comma-separated list of optional parameters with optional values associated.
//		If empty, the default is given by DefaultAgentConfig (usually "dqn", if not changed by the program).
//
// More details on the config are dependent on the module used.
func New(playerID int, spec Spec, config string) (ai.Agent, error) {
	if config == "" {
		config = DefaultAgentConfig
	}

	// Find moduleName.
	moduleName := config
	config = ""
	if moduleSplit := strings.Index(moduleName, ":"); moduleSplit != -1 {
		config = moduleName[moduleSplit+1:]
		moduleName = moduleName[:moduleSplit]
	}
	module, ok := keywordToModules[moduleName]
	if !ok {
		return nil, errors.Errorf("unknown agent %q, registered agents are %q", moduleName, RegisteredModules())
	}

	params := parameters.NewFromConfigString(config)
	agent, err := module.NewAgent(playerID, spec, params)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create agent %q for player %d", moduleName, playerID)
	}
	if len(params) > 0 {
		if closer, ok := agent.(io.Closer); ok {
			_ = closer.Close()
		}
		return nil, errors.Errorf("agent %q: unknown parameters %q", moduleName, params.Keys())
	}
	return agent, nil
}
