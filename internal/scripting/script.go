package scripting

import (
	"fmt"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
	"go.uber.org/zap"
)

// Script is a compiled Lua chunk that evaluates to a boolean.
//
// A Script is immutable after Compile and may be evaluated concurrently; each
// evaluation runs in its own sandboxed state.
type Script struct {
	name      string
	source    string
	proto     *lua.FunctionProto
	instLimit int
}

// Compile parses and compiles src.
//
// Postcondition: Returns a Script or a syntax error naming the chunk.
func Compile(name, src string, instLimit int) (*Script, error) {
	chunk, err := parse.Parse(strings.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("scripting: parsing %q: %w", name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("scripting: compiling %q: %w", name, err)
	}
	return &Script{name: name, source: src, proto: proto, instLimit: instLimit}, nil
}

// Name returns the chunk name used in error messages.
func (s *Script) Name() string { return s.name }

// Source returns the original Lua source.
func (s *Script) Source() string { return s.source }

// EvalBool runs the script with globals bound and returns its first result
// coerced by Lua truthiness.
//
// Supported global values: nil, bool, string, int, int64, float64,
// func() float64, and map[string]any of the same.
//
// Postcondition: Lua runtime errors and instruction-limit exhaustion are
// returned as errors; the caller decides how to degrade.
func (s *Script) EvalBool(globals map[string]any) (bool, error) {
	L := NewSandboxedState(s.instLimit)
	defer L.Close()

	for name, v := range globals {
		L.SetGlobal(name, toLValue(L, v))
	}

	fn := L.NewFunctionFromProto(s.proto)
	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}); err != nil {
		return false, fmt.Errorf("scripting: running %q: %w", s.name, err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return lua.LVAsBool(ret), nil
}

func toLValue(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(x)
	case string:
		return lua.LString(x)
	case int:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	case func() float64:
		return L.NewFunction(func(L *lua.LState) int {
			L.Push(lua.LNumber(x()))
			return 1
		})
	case map[string]any:
		t := L.NewTable()
		for k, inner := range x {
			t.RawSetString(k, toLValue(L, inner))
		}
		return t
	case fmt.Stringer:
		return lua.LString(x.String())
	default:
		return lua.LString(fmt.Sprint(x))
	}
}

// Manager compiles scripts once and shares them by source text.
//
// Manager is safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	scripts   map[string]*Script
	instLimit int
	logger    *zap.Logger
}

// NewManager creates a Manager whose scripts run with instLimit opcodes.
//
// Precondition: logger must be non-nil.
func NewManager(instLimit int, logger *zap.Logger) *Manager {
	return &Manager{
		scripts:   make(map[string]*Script),
		instLimit: instLimit,
		logger:    logger,
	}
}

// Compile returns the cached Script for src, compiling it on first use.
func (m *Manager) Compile(name, src string) (*Script, error) {
	m.mu.RLock()
	s, ok := m.scripts[src]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}

	s, err := Compile(name, src, m.instLimit)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	if existing, ok := m.scripts[src]; ok {
		s = existing
	} else {
		m.scripts[src] = s
	}
	m.mu.Unlock()
	m.logger.Debug("compiled loot script", zap.String("name", name))
	return s, nil
}

// Len returns the number of distinct compiled scripts.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.scripts)
}
