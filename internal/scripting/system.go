package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/riftvale/engine/internal/core/ecs"
	"github.com/riftvale/engine/internal/core/schedule"
)

// ScriptSystem wraps one Lua script as a schedulable system. The script
// declares its footprint with top-level `reads` and `writes` tables of
// component names and implements `update(dt)`. Every script owns its own
// VM, so scripted systems run on pool threads like native ones; the
// declared footprint is what keeps them race-free, exactly as for native
// systems.
type ScriptSystem struct {
	name   string
	vm     *lua.LState
	update *lua.LFunction
	reads  []ecs.Resource
	writes []ecs.Resource
	log    *zap.Logger
}

// Name implements schedule.Named.
func (s *ScriptSystem) Name() string { return s.name }

func (s *ScriptSystem) DeclareDependencies(b *schedule.DependencyBuilder) {
	for _, r := range s.reads {
		b.Reads(r)
	}
	for _, w := range s.writes {
		b.Writes(w)
	}
}

// Update invokes the script's update(dt). A Lua runtime error is a work
// fault: the panic is recovered onto the system's handle by the job
// engine, never propagated past the frame.
func (s *ScriptSystem) Update(dt time.Duration) {
	err := s.vm.CallByParam(lua.P{
		Fn:      s.update,
		NRet:    0,
		Protect: true,
	}, lua.LNumber(dt.Seconds()))
	if err != nil {
		panic(fmt.Errorf("lua %s: %v", s.name, err))
	}
}

// Close shuts down the script's VM.
func (s *ScriptSystem) Close() {
	s.vm.Close()
}

// Host is the surface a script sees: the component resources it may
// declare, plus Go functions exposed as globals.
type Host struct {
	Resources map[string]ecs.Resource
	// Funcs are installed as Lua globals before the script runs.
	Funcs map[string]lua.LGFunction
}

// LoadDir loads every .lua file in dir into its own ScriptSystem. A
// missing directory is not an error — scripts are optional, as in the
// script loading of the surrounding engine.
func LoadDir(dir string, host Host, log *zap.Logger) ([]*ScriptSystem, error) {
	if log == nil {
		log = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read script dir %s: %w", dir, err)
	}

	var systems []*ScriptSystem
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		sys, err := LoadFile(path, host, log)
		if err != nil {
			for _, s := range systems {
				s.Close()
			}
			return nil, err
		}
		systems = append(systems, sys)
		log.Debug("loaded lua system", zap.String("file", path))
	}
	return systems, nil
}

// LoadFile builds one ScriptSystem from a script file.
func LoadFile(path string, host Host, log *zap.Logger) (*ScriptSystem, error) {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	for name, fn := range host.Funcs {
		vm.SetGlobal(name, vm.NewFunction(fn))
	}
	if err := vm.DoFile(path); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	name := "script:" + filepath.Base(path)
	sys := &ScriptSystem{name: name, vm: vm, log: log}

	fn, ok := vm.GetGlobal("update").(*lua.LFunction)
	if !ok {
		vm.Close()
		return nil, fmt.Errorf("%s: missing update function", path)
	}
	sys.update = fn

	var rerr error
	sys.reads, rerr = resolveList(vm, "reads", host.Resources)
	if rerr != nil {
		vm.Close()
		return nil, fmt.Errorf("%s: %w", path, rerr)
	}
	sys.writes, rerr = resolveList(vm, "writes", host.Resources)
	if rerr != nil {
		vm.Close()
		return nil, fmt.Errorf("%s: %w", path, rerr)
	}
	return sys, nil
}

// resolveList maps a script's global table of component names to the
// host's registered resources. An undeclared name is a load error: an
// unresolvable footprint would silently break conflict analysis.
func resolveList(vm *lua.LState, global string, resources map[string]ecs.Resource) ([]ecs.Resource, error) {
	v := vm.GetGlobal(global)
	if v == lua.LNil {
		return nil, nil
	}
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%s must be a table of component names", global)
	}
	var out []ecs.Resource
	var resolveErr error
	tbl.ForEach(func(_, val lua.LValue) {
		name := val.String()
		res, ok := resources[name]
		if !ok && resolveErr == nil {
			resolveErr = fmt.Errorf("%s: unknown component %q", global, name)
			return
		}
		out = append(out, res)
	})
	if resolveErr != nil {
		return nil, resolveErr
	}
	return out, nil
}
