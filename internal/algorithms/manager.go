package algorithms

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"demarcation-eraser/internal/algorithms/mask"
	"demarcation-eraser/internal/algorithms/overlay"
	"demarcation-eraser/internal/algorithms/removal"
	"demarcation-eraser/internal/logger"
	"demarcation-eraser/internal/opencv/safe"
)

// Algorithm defines the interface for image processing algorithms
type Algorithm interface {
	Process(input *safe.Mat, params map[string]interface{}) (*safe.Mat, error)
	ValidateParameters(params map[string]interface{}) error
	GetDefaultParameters() map[string]interface{}
	GetName() string
}

// ContextualAlgorithm extends Algorithm with context support for cancellation
type ContextualAlgorithm interface {
	Algorithm
	ProcessWithContext(ctx context.Context, input *safe.Mat, params map[string]interface{}) (*safe.Mat, error)
}

const DefaultAlgorithm = removal.Name

// Short names accepted on the command line and in config files.
var aliases = map[string]string{
	"remove":  removal.Name,
	"removal": removal.Name,
	"mask":    mask.Name,
	"overlay": overlay.Name,
}

type Manager struct {
	algorithms map[string]Algorithm
	parameters map[string]map[string]interface{}
	mu         sync.RWMutex
}

func NewManager(log logger.Logger) *Manager {
	manager := &Manager{
		algorithms: make(map[string]Algorithm),
		parameters: make(map[string]map[string]interface{}),
	}

	manager.registerAlgorithms(logger.OrNop(log))
	manager.initializeDefaultParameters()

	return manager
}

func (m *Manager) registerAlgorithms(log logger.Logger) {
	for _, alg := range []Algorithm{
		removal.NewProcessor(log),
		mask.NewProcessor(),
		overlay.NewProcessor(log),
	} {
		m.algorithms[alg.GetName()] = alg
	}
}

func (m *Manager) initializeDefaultParameters() {
	for name, algorithm := range m.algorithms {
		m.parameters[name] = algorithm.GetDefaultParameters()
	}
}

// Resolve maps an alias or display name to the registered display name.
func (m *Manager) Resolve(name string) (string, error) {
	if name == "" {
		return DefaultAlgorithm, nil
	}
	if _, exists := m.algorithms[name]; exists {
		return name, nil
	}
	if canonical, ok := aliases[strings.ToLower(name)]; ok {
		return canonical, nil
	}
	return "", fmt.Errorf("unknown algorithm: %s", name)
}

func (m *Manager) GetParameters(algorithm string) map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name, err := m.Resolve(algorithm)
	if err != nil {
		return make(map[string]interface{})
	}

	result := make(map[string]interface{}, len(m.parameters[name]))
	for k, v := range m.parameters[name] {
		result[k] = v
	}
	return result
}

// SetParameters merges values into the stored parameters. The merged set is
// validated as a whole and nothing is stored when it is rejected.
func (m *Manager) SetParameters(algorithm string, values map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	canonical, err := m.Resolve(algorithm)
	if err != nil {
		return err
	}

	candidate := make(map[string]interface{}, len(m.parameters[canonical])+len(values))
	for k, v := range m.parameters[canonical] {
		candidate[k] = v
	}
	for k, v := range values {
		candidate[k] = v
	}

	if err := m.algorithms[canonical].ValidateParameters(candidate); err != nil {
		return err
	}

	m.parameters[canonical] = candidate
	return nil
}

func (m *Manager) GetAlgorithm(name string) (Algorithm, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	canonical, err := m.Resolve(name)
	if err != nil {
		return nil, err
	}
	return m.algorithms[canonical], nil
}

func (m *Manager) GetAvailableAlgorithms() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	algorithms := make([]string, 0, len(m.algorithms))
	for name := range m.algorithms {
		algorithms = append(algorithms, name)
	}
	sort.Strings(algorithms)

	return algorithms
}
