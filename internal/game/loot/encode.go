package loot

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// EncodeTable renders t in the format DecodeTable reads. Inline table keys
// are not written.
func EncodeTable(t *Table) ([]byte, error) {
	out, err := yaml.Marshal(encodeTable(t))
	if err != nil {
		return nil, fmt.Errorf("encoding table %q: %w", t.Key, err)
	}
	return out, nil
}

// EncodeCondition renders c in the format DecodeCondition reads.
func EncodeCondition(c Condition) ([]byte, error) {
	return yaml.Marshal(encodeCondition(c))
}

// EncodeFunction renders f in the format DecodeFunction reads.
func EncodeFunction(f Function) ([]byte, error) {
	return yaml.Marshal(encodeFunction(f))
}

func encodeTable(t *Table) map[string]any {
	m := map[string]any{"parameters": t.ParamSet.Name()}
	if t.RandomSequence != "" {
		m["random_sequence"] = t.RandomSequence
	}
	if len(t.Pools) > 0 {
		pools := make([]any, len(t.Pools))
		for i, p := range t.Pools {
			pools[i] = encodePool(p)
		}
		m["pools"] = pools
	}
	putFunctions(m, t.Functions)
	return m
}

func encodePool(p Pool) map[string]any {
	m := map[string]any{"rolls": encodeNumber(p.Rolls)}
	if v, ok := p.BonusRolls.ConstantValue(); !ok || v != 0 {
		m["bonus_rolls"] = encodeNumber(p.BonusRolls)
	}
	entries := make([]any, len(p.Entries))
	for i, e := range p.Entries {
		entries[i] = encodeEntry(e)
	}
	m["entries"] = entries
	putConditions(m, p.Conditions)
	putFunctions(m, p.Functions)
	return m
}

func encodeEntry(e Entry) map[string]any {
	m := map[string]any{"type": e.Kind.String()}
	putConditions(m, e.Conditions)
	if e.Kind.IsComposite() {
		children := make([]any, len(e.Children))
		for i, c := range e.Children {
			children[i] = encodeEntry(c)
		}
		m["children"] = children
		return m
	}
	if e.Weight != DefaultWeight {
		m["weight"] = e.Weight
	}
	if e.Quality != 0 {
		m["quality"] = e.Quality
	}
	putFunctions(m, e.Functions)
	switch e.Kind {
	case EntryItem, EntryDynamic:
		m["name"] = e.Name
	case EntryTag:
		m["name"] = e.Name
		if e.ExpandTag {
			m["expand"] = true
		}
	case EntryTable:
		if e.Inline != nil {
			m["value"] = encodeTable(e.Inline)
		} else {
			m["value"] = e.TableKey
		}
	}
	return m
}

func encodeCondition(c Condition) map[string]any {
	m := map[string]any{"type": c.Kind.String()}
	switch c.Kind {
	case ConditionAllOf, ConditionAnyOf:
		m["terms"] = encodeConditions(c.Terms)
	case ConditionInverted:
		if c.Term != nil {
			m["term"] = encodeCondition(*c.Term)
		}
	case ConditionRandomChance:
		m["chance"] = encodeNumber(c.Chance)
	case ConditionRandomChanceWithLuck:
		m["chance"] = encodeNumber(c.Chance)
		m["luck_multiplier"] = c.LuckMultiplier
	case ConditionHasParameter:
		m["parameter"] = string(c.Parameter)
	case ConditionValueCheck:
		m["value"] = encodeNumber(c.Value)
		m["range"] = encodeIntRange(c.Range)
	case ConditionReference:
		m["name"] = c.Name
	case ConditionScript:
		if c.Script != nil {
			m["source"] = c.Script.Source()
		}
		if len(c.Reads) > 0 {
			reads := make([]string, len(c.Reads))
			for i, k := range c.Reads {
				reads[i] = string(k)
			}
			m["reads"] = reads
		}
	}
	return m
}

func encodeFunction(f Function) map[string]any {
	m := map[string]any{"type": f.Kind.String()}
	putConditions(m, f.Conditions)
	switch f.Kind {
	case FunctionSetCount:
		m["count"] = encodeNumber(f.Count)
		if f.Add {
			m["add"] = true
		}
	case FunctionLimitCount:
		m["limit"] = encodeIntRange(f.Limit)
	case FunctionSetAttribute:
		m["name"] = f.Attribute
		m["value"] = f.Value
	case FunctionCopyParameter:
		m["parameter"] = string(f.Parameter)
		m["name"] = f.Attribute
	case FunctionReference:
		m["name"] = f.Name
	case FunctionSequence:
		fns := make([]any, len(f.Functions))
		for i, g := range f.Functions {
			fns[i] = encodeFunction(g)
		}
		m["functions"] = fns
	}
	return m
}

// encodeNumber writes constants as bare numbers and dice as their expression.
func encodeNumber(n NumberProvider) any {
	switch n.Kind {
	case NumberConstant:
		if n.Value == float64(int(n.Value)) {
			return int(n.Value)
		}
		return n.Value
	case NumberUniform:
		return map[string]any{"type": n.Kind.String(), "min": encodeNumberPtr(n.Min), "max": encodeNumberPtr(n.Max)}
	case NumberBinomial:
		return map[string]any{"type": n.Kind.String(), "n": encodeNumberPtr(n.N), "p": encodeNumberPtr(n.P)}
	case NumberDice:
		return n.Dice.String()
	}
	return 0
}

func encodeNumberPtr(n *NumberProvider) any {
	if n == nil {
		return 0
	}
	return encodeNumber(*n)
}

// encodeIntRange prefers a bare integer when both bounds are the same
// integral constant.
func encodeIntRange(r IntRange) any {
	if v, ok := r.ExactValue(); ok {
		return v
	}
	m := map[string]any{}
	if r.Min != nil {
		m["min"] = encodeNumber(*r.Min)
	}
	if r.Max != nil {
		m["max"] = encodeNumber(*r.Max)
	}
	return m
}

func encodeConditions(cs []Condition) []any {
	out := make([]any, len(cs))
	for i, c := range cs {
		out[i] = encodeCondition(c)
	}
	return out
}

func putConditions(m map[string]any, cs []Condition) {
	if len(cs) > 0 {
		m["conditions"] = encodeConditions(cs)
	}
}

func putFunctions(m map[string]any, fs []Function) {
	if len(fs) == 0 {
		return
	}
	out := make([]any, len(fs))
	for i, f := range fs {
		out[i] = encodeFunction(f)
	}
	m["functions"] = out
}
