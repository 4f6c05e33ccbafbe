package engines

import (
	"sync/atomic"
	"time"

	"github.com/phantomssr/phantom/pkg/interfaces"
	"github.com/phantomssr/phantom/pkg/logger"
	"github.com/phantomssr/phantom/pkg/types"
)

var _ interfaces.EngineFactory = (*ScriptEngineFactory)(nil)

// ScriptEngineFactory creates goja-backed script engines
type ScriptEngineFactory struct {
	timeout time.Duration
	logger  logger.Logger
	created atomic.Int64
}

// NewScriptEngineFactory creates a factory whose engines abort renders
// after timeout
func NewScriptEngineFactory(timeout time.Duration, log logger.Logger) *ScriptEngineFactory {
	return &ScriptEngineFactory{
		timeout: timeout,
		logger:  log,
	}
}

// Create returns a new stopped engine. The caller starts it with meta.
func (f *ScriptEngineFactory) Create(meta *types.EngineMetadata) (interfaces.RenderEngine, error) {
	id := int(f.created.Add(1))
	return NewScriptEngine(id, f.timeout, f.logger), nil
}

// Created returns how many engines this factory has made
func (f *ScriptEngineFactory) Created() int {
	return int(f.created.Load())
}
