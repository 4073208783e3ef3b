// Package discovery выбирает коннекторы, которые регистрирует runtime.
//
// Если в окружении есть переменные CONNECTOR_<NAME>_FUNCTION или
// CONNECTOR_<NAME>_EXECUTABLE, регистрируются только описанные ими
// коннекторы; иначе регистрируется весь встроенный каталог.
//
// Значение FUNCTION/EXECUTABLE - имя встроенной реализации в каталоге.
// Остальные ключи переопределяют её описание:
//
//	CONNECTOR_<NAME>_TYPE
//	CONNECTOR_<NAME>_INPUT_VARIABLES           (через запятую)
//	CONNECTOR_<NAME>_TIMEOUT                   (миллисекунды)
//	CONNECTOR_<NAME>_DEDUPLICATION_PROPERTIES  (через запятую)
package discovery

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/Connectors/internal/connector"
)

var (
	outboundPattern = regexp.MustCompile(`^CONNECTOR_(.+)_FUNCTION$`)
	inboundPattern  = regexp.MustCompile(`^CONNECTOR_(.+)_EXECUTABLE$`)
)

// ErrLoadFailed: переменная ссылается на неизвестную реализацию.
var ErrLoadFailed = errors.New("failed to load connector")

// Catalog: встроенные реализации по имени.
type Catalog struct {
	Outbound map[string]connector.OutboundRegistration
	Inbound  map[string]connector.InboundRegistration
}

// Result: найденные коннекторы.
type Result struct {
	Outbound []connector.OutboundRegistration
	Inbound  []connector.InboundRegistration

	// FromEnv: true, если набор задан переменными окружения.
	FromEnv bool
}

// Discover разбирает окружение в формате os.Environ().
func Discover(environ []string, cat Catalog) (Result, error) {
	env := toMap(environ)

	outNames := match(env, outboundPattern)
	inNames := match(env, inboundPattern)

	if len(outNames) == 0 && len(inNames) == 0 {
		return builtin(cat), nil
	}

	res := Result{FromEnv: true}
	for _, name := range outNames {
		reg, err := loadOutbound(env, name, cat)
		if err != nil {
			return Result{}, err
		}
		res.Outbound = append(res.Outbound, reg)
	}
	for _, name := range inNames {
		reg, err := loadInbound(env, name, cat)
		if err != nil {
			return Result{}, err
		}
		res.Inbound = append(res.Inbound, reg)
	}
	return res, nil
}

// Register регистрирует найденные коннекторы в реестре.
func (r Result) Register(reg *connector.Registry) {
	for _, o := range r.Outbound {
		reg.RegisterOutbound(o.Definition, o.Function)
	}
	for _, i := range r.Inbound {
		reg.RegisterInbound(i)
	}
}

func builtin(cat Catalog) Result {
	var res Result
	for _, name := range sortedKeys(cat.Outbound) {
		res.Outbound = append(res.Outbound, cat.Outbound[name])
	}
	for _, name := range sortedKeys(cat.Inbound) {
		res.Inbound = append(res.Inbound, cat.Inbound[name])
	}
	return res
}

func loadOutbound(env map[string]string, name string, cat Catalog) (connector.OutboundRegistration, error) {
	impl, ok := lookup(env, name, "FUNCTION")
	if !ok {
		return connector.OutboundRegistration{}, envMissing("No function specified", name, "FUNCTION")
	}
	base, ok := cat.Outbound[impl]
	if !ok {
		return connector.OutboundRegistration{}, fmt.Errorf("%w: unknown function %q", ErrLoadFailed, impl)
	}

	def := base.Definition
	def.Name = name
	if v, ok := lookup(env, name, "INPUT_VARIABLES"); ok {
		def.InputVariables = splitList(v)
	}
	if v, ok := lookup(env, name, "TYPE"); ok {
		def.Type = v
	}
	if def.Type == "" {
		return connector.OutboundRegistration{}, envMissing("Type not specified", name, "TYPE")
	}
	if v, ok := lookup(env, name, "TIMEOUT"); ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return connector.OutboundRegistration{}, fmt.Errorf("%w: CONNECTOR_%s_TIMEOUT: %v", ErrLoadFailed, name, err)
		}
		def.Timeout = time.Duration(ms) * time.Millisecond
	}
	return connector.OutboundRegistration{Definition: def, Function: base.Function}, nil
}

func loadInbound(env map[string]string, name string, cat Catalog) (connector.InboundRegistration, error) {
	impl, ok := lookup(env, name, "EXECUTABLE")
	if !ok {
		return connector.InboundRegistration{}, envMissing("No executable specified", name, "EXECUTABLE")
	}
	reg, ok := cat.Inbound[impl]
	if !ok {
		return connector.InboundRegistration{}, fmt.Errorf("%w: unknown executable %q", ErrLoadFailed, impl)
	}

	reg.Name = name
	if v, ok := lookup(env, name, "TYPE"); ok {
		reg.Type = v
	}
	if reg.Type == "" {
		return connector.InboundRegistration{}, envMissing("Type not specified", name, "TYPE")
	}
	if v, ok := lookup(env, name, "DEDUPLICATION_PROPERTIES"); ok {
		reg.DeduplicationProperties = splitList(v)
	}
	return reg, nil
}

func envMissing(message, name, key string) error {
	return fmt.Errorf("%s: Please configure it via CONNECTOR_%s_%s environment variable", message, name, key)
}

func lookup(env map[string]string, name, key string) (string, bool) {
	v, ok := env["CONNECTOR_"+name+"_"+key]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func match(env map[string]string, p *regexp.Regexp) []string {
	var names []string
	for k := range env {
		if m := p.FindStringSubmatch(k); m != nil {
			names = append(names, m[1])
		}
	}
	sort.Strings(names)
	return names
}

func toMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			env[k] = v
		}
	}
	return env
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
