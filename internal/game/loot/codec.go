package loot

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/lootgen/internal/game/dice"
	"github.com/cory-johannsen/lootgen/internal/scripting"
)

// InlineKeyPrefix prefixes the generated keys of tables defined in place.
const InlineKeyPrefix = "inline:"

// TypeNames maps serialized type tags to node kinds.
type TypeNames struct {
	Numbers    map[string]NumberKind
	Entries    map[string]EntryKind
	Conditions map[string]ConditionKind
	Functions  map[string]FunctionKind
}

// DefaultTypeNames returns the tags of every built-in kind.
func DefaultTypeNames() TypeNames {
	t := TypeNames{
		Numbers:    make(map[string]NumberKind),
		Entries:    make(map[string]EntryKind, len(entryNames)),
		Conditions: make(map[string]ConditionKind, len(conditionNames)),
		Functions:  make(map[string]FunctionKind, len(functionNames)),
	}
	for _, k := range []NumberKind{NumberConstant, NumberUniform, NumberBinomial, NumberDice} {
		t.Numbers[k.String()] = k
	}
	for k, name := range entryNames {
		t.Entries[name] = EntryKind(k)
	}
	for k, name := range conditionNames {
		t.Conditions[name] = ConditionKind(k)
	}
	for k, name := range functionNames {
		t.Functions[name] = FunctionKind(k)
	}
	return t
}

// Decoder parses YAML documents into loot nodes.
//
// A Decoder is safe for concurrent use once constructed.
type Decoder struct {
	types   TypeNames
	scripts *scripting.Manager
}

// NewDecoder returns a Decoder recognising types. A nil scripts manager
// rejects script conditions.
func NewDecoder(types TypeNames, scripts *scripting.Manager) *Decoder {
	return &Decoder{types: types, scripts: scripts}
}

// DecodeTable parses a table document registered under key.
func (d *Decoder) DecodeTable(key string, data []byte) (*Table, error) {
	root, err := documentRoot(data)
	if err != nil {
		return nil, fmt.Errorf("decoding table %q: %w", key, err)
	}
	s := &decoding{Decoder: d, key: key}
	t, err := s.table(root, key)
	if err != nil {
		return nil, fmt.Errorf("decoding table %q: %w", key, err)
	}
	return t, nil
}

// DecodeCondition parses a named condition document.
func (d *Decoder) DecodeCondition(key string, data []byte) (*Condition, error) {
	root, err := documentRoot(data)
	if err != nil {
		return nil, fmt.Errorf("decoding condition %q: %w", key, err)
	}
	s := &decoding{Decoder: d, key: key}
	c, err := s.condition(root)
	if err != nil {
		return nil, fmt.Errorf("decoding condition %q: %w", key, err)
	}
	return &c, nil
}

// DecodeFunction parses a named function document.
func (d *Decoder) DecodeFunction(key string, data []byte) (*Function, error) {
	root, err := documentRoot(data)
	if err != nil {
		return nil, fmt.Errorf("decoding function %q: %w", key, err)
	}
	s := &decoding{Decoder: d, key: key}
	f, err := s.function(root)
	if err != nil {
		return nil, fmt.Errorf("decoding function %q: %w", key, err)
	}
	return &f, nil
}

func documentRoot(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.New("empty document")
	}
	return doc.Content[0], nil
}

// decoding carries the key of the document being decoded.
type decoding struct {
	*Decoder
	key string
}

func (s *decoding) table(n *yaml.Node, key string) (*Table, error) {
	f, err := newFields(n)
	if err != nil {
		return nil, err
	}
	t := &Table{Key: key, ParamSet: ParamSetAll}
	if name := optional(f, "parameters", "", scalarString); name != "" {
		set, ok := ParamSetByName(name)
		if !ok {
			f.fail(nodeErr(f.node("parameters"), "unknown parameter set %q", name))
		}
		t.ParamSet = set
	}
	t.RandomSequence = optional(f, "random_sequence", "", scalarString)
	t.Pools = optional(f, "pools", nil, listOf(s.pool))
	t.Functions = optional(f, "functions", nil, listOf(s.function))
	return t, f.finish()
}

func (s *decoding) pool(n *yaml.Node) (Pool, error) {
	f, err := newFields(n)
	if err != nil {
		return Pool{}, err
	}
	p := Pool{
		Rolls:      required(f, "rolls", s.number),
		BonusRolls: optional(f, "bonus_rolls", NumberProvider{}, s.number),
		Entries:    optional(f, "entries", nil, listOf(s.entry)),
		Conditions: optional(f, "conditions", nil, listOf(s.condition)),
		Functions:  optional(f, "functions", nil, listOf(s.function)),
	}
	return p, f.finish()
}

func (s *decoding) entry(n *yaml.Node) (Entry, error) {
	f, err := newFields(n)
	if err != nil {
		return Entry{}, err
	}
	tag := required(f, "type", scalarString)
	kind, ok := s.types.Entries[tag]
	if !ok && f.err == nil {
		return Entry{}, nodeErr(n, "unknown entry type %q", tag)
	}
	e := Entry{
		Kind:       kind,
		Conditions: optional(f, "conditions", nil, listOf(s.condition)),
	}
	if kind.IsComposite() {
		e.Children = optional(f, "children", nil, listOf(s.entry))
		return e, f.finish()
	}

	e.Weight = optional(f, "weight", DefaultWeight, scalarInt)
	e.Quality = optional(f, "quality", 0, scalarInt)
	e.Functions = optional(f, "functions", nil, listOf(s.function))
	switch kind {
	case EntryItem, EntryDynamic:
		e.Name = required(f, "name", scalarString)
	case EntryTag:
		e.Name = required(f, "name", scalarString)
		e.ExpandTag = optional(f, "expand", false, scalarBool)
	case EntryTable:
		v := f.get("value")
		switch {
		case v == nil:
			f.fail(nodeErr(n, "missing field %q", "value"))
		case v.Kind == yaml.ScalarNode:
			e.TableKey = v.Value
		default:
			t, err := s.table(v, InlineKeyPrefix+uuid.NewString())
			f.fail(err)
			e.Inline = t
		}
	}
	return e, f.finish()
}

func (s *decoding) condition(n *yaml.Node) (Condition, error) {
	f, err := newFields(n)
	if err != nil {
		return Condition{}, err
	}
	tag := required(f, "type", scalarString)
	kind, ok := s.types.Conditions[tag]
	if !ok && f.err == nil {
		return Condition{}, nodeErr(n, "unknown condition type %q", tag)
	}
	c := Condition{Kind: kind}
	switch kind {
	case ConditionAllOf, ConditionAnyOf:
		c.Terms = required(f, "terms", listOf(s.condition))
	case ConditionInverted:
		term := required(f, "term", s.condition)
		c.Term = &term
	case ConditionRandomChance:
		c.Chance = required(f, "chance", s.number)
	case ConditionRandomChanceWithLuck:
		c.Chance = required(f, "chance", s.number)
		c.LuckMultiplier = optional(f, "luck_multiplier", 0, scalarFloat)
	case ConditionHasParameter:
		c.Parameter = ContextKey(required(f, "parameter", scalarString))
	case ConditionValueCheck:
		c.Value = required(f, "value", s.number)
		c.Range = required(f, "range", s.intRange)
	case ConditionReference:
		c.Name = required(f, "name", scalarString)
	case ConditionScript:
		src := required(f, "source", scalarString)
		for _, k := range optional(f, "reads", nil, listOf(scalarString)) {
			c.Reads = append(c.Reads, ContextKey(k))
		}
		if f.err == nil {
			c.Script, err = s.compile(n, src)
			f.fail(err)
		}
	}
	return c, f.finish()
}

func (s *decoding) compile(n *yaml.Node, src string) (*scripting.Script, error) {
	if s.scripts == nil {
		return nil, nodeErr(n, "script conditions are not enabled")
	}
	script, err := s.scripts.Compile(fmt.Sprintf("%s:%d", s.key, n.Line), src)
	if err != nil {
		return nil, nodeErr(n, "%v", err)
	}
	return script, nil
}

func (s *decoding) function(n *yaml.Node) (Function, error) {
	f, err := newFields(n)
	if err != nil {
		return Function{}, err
	}
	tag := required(f, "type", scalarString)
	kind, ok := s.types.Functions[tag]
	if !ok && f.err == nil {
		return Function{}, nodeErr(n, "unknown function type %q", tag)
	}
	fn := Function{
		Kind:       kind,
		Conditions: optional(f, "conditions", nil, listOf(s.condition)),
	}
	switch kind {
	case FunctionSetCount:
		fn.Count = required(f, "count", s.number)
		fn.Add = optional(f, "add", false, scalarBool)
	case FunctionLimitCount:
		fn.Limit = required(f, "limit", s.intRange)
	case FunctionSetAttribute:
		fn.Attribute = required(f, "name", scalarString)
		fn.Value = required(f, "value", scalarString)
	case FunctionCopyParameter:
		fn.Parameter = ContextKey(required(f, "parameter", scalarString))
		fn.Attribute = required(f, "name", scalarString)
	case FunctionReference:
		fn.Name = required(f, "name", scalarString)
	case FunctionSequence:
		fn.Functions = required(f, "functions", listOf(s.function))
	}
	return fn, f.finish()
}

// number accepts a bare number, a dice expression such as "2d6+1", or a
// tagged mapping.
func (s *decoding) number(n *yaml.Node) (NumberProvider, error) {
	if n.Kind == yaml.ScalarNode {
		if v, err := strconv.ParseFloat(n.Value, 64); err == nil {
			return Constant(v), nil
		}
		expr, err := dice.Parse(n.Value)
		if err != nil {
			return NumberProvider{}, nodeErr(n, "invalid number %q", n.Value)
		}
		return Dice(expr), nil
	}
	f, err := newFields(n)
	if err != nil {
		return NumberProvider{}, err
	}
	tag := required(f, "type", scalarString)
	kind, ok := s.types.Numbers[tag]
	if !ok && f.err == nil {
		return NumberProvider{}, nodeErr(n, "unknown number type %q", tag)
	}
	var p NumberProvider
	switch kind {
	case NumberConstant:
		p = Constant(required(f, "value", scalarFloat))
	case NumberUniform:
		p = UniformOf(required(f, "min", s.number), required(f, "max", s.number))
	case NumberBinomial:
		nn, pp := required(f, "n", s.number), required(f, "p", s.number)
		p = NumberProvider{Kind: NumberBinomial, N: &nn, P: &pp}
	case NumberDice:
		raw := required(f, "expression", scalarString)
		if f.err == nil {
			expr, err := dice.Parse(raw)
			f.fail(err)
			p = Dice(expr)
		}
	}
	return p, f.finish()
}

// intRange accepts a bare integer for an exact range.
func (s *decoding) intRange(n *yaml.Node) (IntRange, error) {
	if n.Kind == yaml.ScalarNode {
		v, err := scalarInt(n)
		if err != nil {
			return IntRange{}, err
		}
		return Exact(v), nil
	}
	f, err := newFields(n)
	if err != nil {
		return IntRange{}, err
	}
	var r IntRange
	if f.has("min") {
		lo := required(f, "min", s.number)
		r.Min = &lo
	}
	if f.has("max") {
		hi := required(f, "max", s.number)
		r.Max = &hi
	}
	return r, f.finish()
}

// fields tracks which keys of a mapping were consumed and keeps the first
// decoding error.
type fields struct {
	mapping *yaml.Node
	values  map[string]*yaml.Node
	used    map[string]bool
	err     error
}

func newFields(n *yaml.Node) (*fields, error) {
	if n.Kind != yaml.MappingNode {
		return nil, nodeErr(n, "expected a mapping")
	}
	f := &fields{
		mapping: n,
		values:  make(map[string]*yaml.Node, len(n.Content)/2),
		used:    make(map[string]bool, len(n.Content)/2),
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		f.values[n.Content[i].Value] = n.Content[i+1]
	}
	return f, nil
}

func (f *fields) has(name string) bool {
	_, ok := f.values[name]
	return ok
}

func (f *fields) node(name string) *yaml.Node {
	if n, ok := f.values[name]; ok {
		return n
	}
	return f.mapping
}

func (f *fields) get(name string) *yaml.Node {
	f.used[name] = true
	return f.values[name]
}

func (f *fields) fail(err error) {
	if f.err == nil && err != nil {
		f.err = err
	}
}

// finish returns the first decoding error, or an error naming the first
// unknown key.
func (f *fields) finish() error {
	if f.err != nil {
		return f.err
	}
	for i := 0; i+1 < len(f.mapping.Content); i += 2 {
		k := f.mapping.Content[i]
		if !f.used[k.Value] {
			return nodeErr(k, "unknown field %q", k.Value)
		}
	}
	return nil
}

func optional[T any](f *fields, name string, def T, decode func(*yaml.Node) (T, error)) T {
	n := f.get(name)
	if n == nil || f.err != nil {
		return def
	}
	v, err := decode(n)
	if err != nil {
		f.fail(err)
		return def
	}
	return v
}

func required[T any](f *fields, name string, decode func(*yaml.Node) (T, error)) T {
	var zero T
	if f.err == nil && f.values[name] == nil {
		f.used[name] = true
		f.fail(nodeErr(f.mapping, "missing field %q", name))
		return zero
	}
	return optional(f, name, zero, decode)
}

func listOf[T any](decode func(*yaml.Node) (T, error)) func(*yaml.Node) ([]T, error) {
	return func(n *yaml.Node) ([]T, error) {
		if n.Kind != yaml.SequenceNode {
			return nil, nodeErr(n, "expected a list")
		}
		out := make([]T, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := decode(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
}

func scalarString(n *yaml.Node) (string, error) {
	if n.Kind != yaml.ScalarNode {
		return "", nodeErr(n, "expected a string")
	}
	return n.Value, nil
}

func scalarInt(n *yaml.Node) (int, error) {
	var v int
	if err := n.Decode(&v); err != nil {
		return 0, nodeErr(n, "expected an integer")
	}
	return v, nil
}

func scalarFloat(n *yaml.Node) (float64, error) {
	var v float64
	if err := n.Decode(&v); err != nil {
		return 0, nodeErr(n, "expected a number")
	}
	return v, nil
}

func scalarBool(n *yaml.Node) (bool, error) {
	var v bool
	if err := n.Decode(&v); err != nil {
		return false, nodeErr(n, "expected a boolean")
	}
	return v, nil
}

func nodeErr(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("line %d: %s", n.Line, fmt.Sprintf(format, args...))
}
