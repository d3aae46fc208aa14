package ir

import (
	"strconv"
	"time"
)

// Config is the complete engine configuration, loaded once at init.
// The engine copies recipes at init; runtime unlocks never write back here.
type Config struct {
	Queue   QueueConfig  `json:"queue"`
	Timing  TimingConfig `json:"timing"`
	Pool    PoolConfig   `json:"pool"`
	Units   []UnitType   `json:"units"`
	Rules   []MergeRule  `json:"rules"`
	Recipes []Recipe     `json:"recipes"`
}

// QueueConfig holds capacity and container bounds.
type QueueConfig struct {
	Capacity int     `json:"capacity"`
	Padding  float64 `json:"padding"`
	Width    float64 `json:"width"`
	Left     float64 `json:"left"`
}

// TimingConfig holds the fixed transition durations.
type TimingConfig struct {
	Reposition time.Duration `json:"reposition"`
	Lift       time.Duration `json:"lift"`
	Converge   time.Duration `json:"converge"`
	Message    time.Duration `json:"message"`
	LiftOffset float64       `json:"lift_offset"`
}

// PoolConfig names the allocator pool used for token visuals.
// Limit 0 means unbounded.
type PoolConfig struct {
	Key     string `json:"key"`
	Prewarm int    `json:"prewarm"`
	Limit   int    `json:"limit"`
}

// Defaults used when a config omits a field.
const (
	DefaultCapacity   = 9
	DefaultPadding    = 6.0
	DefaultWidth      = 540.0
	DefaultPoolKey    = "UnitBlock"
	DefaultPrewarm    = 9
	DefaultLiftOffset = 50.0

	DefaultReposition = 200 * time.Millisecond
	DefaultLift       = 300 * time.Millisecond
	DefaultConverge   = 400 * time.Millisecond
	DefaultMessage    = 1500 * time.Millisecond
)

// DefaultRules is the rule table used when a config declares none.
func DefaultRules() []MergeRule {
	return []MergeRule{
		{ID: "four-chain", RequiredRunLength: 4, OutputCount: 2, Priority: 2, MessageTemplate: "Quad merge!"},
		{ID: "three-chain", RequiredRunLength: 3, OutputCount: 1, Priority: 1, MessageTemplate: "Triple merge!"},
	}
}

// DefaultConfig returns a config with every default applied and no units or recipes.
func DefaultConfig() *Config {
	return &Config{
		Queue: QueueConfig{
			Capacity: DefaultCapacity,
			Padding:  DefaultPadding,
			Width:    DefaultWidth,
			Left:     -DefaultWidth / 2,
		},
		Timing: TimingConfig{
			Reposition: DefaultReposition,
			Lift:       DefaultLift,
			Converge:   DefaultConverge,
			Message:    DefaultMessage,
			LiftOffset: DefaultLiftOffset,
		},
		Pool: PoolConfig{
			Key:     DefaultPoolKey,
			Prewarm: DefaultPrewarm,
		},
		Rules: DefaultRules(),
	}
}

// Unit returns the unit type with the given id.
func (c *Config) Unit(id TypeID) (UnitType, bool) {
	for _, u := range c.Units {
		if u.ID == id {
			return u, true
		}
	}
	return UnitType{}, false
}

// Recipe returns the recipe with the given id.
func (c *Config) Recipe(id string) (Recipe, bool) {
	for _, r := range c.Recipes {
		if r.ID == id {
			return r, true
		}
	}
	return Recipe{}, false
}

// MarshalConfig returns the canonical JSON form of c, the bytes ConfigHash covers.
func MarshalConfig(c *Config) ([]byte, error) {
	return MarshalCanonical(c.canonicalMap())
}

// canonicalMap converts the config to canonical-JSON-safe values.
// Floats are carried as their shortest decimal text.
func (c *Config) canonicalMap() map[string]any {
	units := make([]any, len(c.Units))
	for i, u := range c.Units {
		m := map[string]any{
			"id":   string(u.ID),
			"name": u.Name,
			"tier": u.Tier,
		}
		if u.Next != "" {
			m["next"] = string(u.Next)
		}
		units[i] = m
	}

	rules := make([]any, len(c.Rules))
	for i, r := range c.Rules {
		rules[i] = map[string]any{
			"id":       r.ID,
			"required": r.RequiredRunLength,
			"output":   r.OutputCount,
			"priority": r.Priority,
			"message":  r.MessageTemplate,
		}
	}

	recipes := make([]any, len(c.Recipes))
	for i, r := range c.Recipes {
		recipes[i] = map[string]any{
			"id":          r.ID,
			"sequence":    typeList(r.Sequence),
			"result":      string(r.Result),
			"output":      r.OutputCount,
			"message":     r.UnlockMessage,
			"unlock_wave": r.UnlockThreshold,
			"unlocked":    r.Unlocked,
		}
	}

	return map[string]any{
		"queue": map[string]any{
			"capacity": c.Queue.Capacity,
			"padding":  formatFloat(c.Queue.Padding),
			"width":    formatFloat(c.Queue.Width),
			"left":     formatFloat(c.Queue.Left),
		},
		"timing": map[string]any{
			"reposition_ms": c.Timing.Reposition.Milliseconds(),
			"lift_ms":       c.Timing.Lift.Milliseconds(),
			"converge_ms":   c.Timing.Converge.Milliseconds(),
			"message_ms":    c.Timing.Message.Milliseconds(),
			"lift_offset":   formatFloat(c.Timing.LiftOffset),
		},
		"pool": map[string]any{
			"key":     c.Pool.Key,
			"prewarm": c.Pool.Prewarm,
			"limit":   c.Pool.Limit,
		},
		"units":   units,
		"rules":   rules,
		"recipes": recipes,
	}
}

// TypeList converts type ids to a canonical-JSON-safe list.
func TypeList(types []TypeID) []any {
	return typeList(types)
}

func typeList(types []TypeID) []any {
	out := make([]any, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
