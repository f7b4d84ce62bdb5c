// Package gcconfig loads the collector's tunables through viper, giving a
// layered (flags > env > file > default) configuration approach instead of
// hand-rolled flag parsing.
package gcconfig

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Settings holds every tunable gc.* configuration key.
type Settings struct {
	// MsgLoopSleep is how long the worker goroutine backs off when it finds
	// the message queue empty, from gc.msg_loop_sleep_ms.
	MsgLoopSleep time.Duration

	// PoolInitialSize is the block count the first MemoryPool chunk in the
	// dynamic set is created with, from gc.mem_blocks_pool.initial_size.
	PoolInitialSize uint32

	// PoolGrowingFactor scales the block count of each subsequent chunk,
	// from gc.mem_blocks_pool.growing_factor.
	PoolGrowingFactor float64

	// SlotTableSizeLog2 pre-sizes the slot table's initial bucket count,
	// from gc.sptr_objects_hash_table.initial_size_log2.
	SlotTableSizeLog2 uint32

	// LoadFactorThreshold is carried for fidelity with the original tunable
	// set; Go's built-in map manages its own load factor, so nothing reads
	// this value (see DESIGN.md).
	LoadFactorThreshold float64
}

// Default returns the documented default settings, before any
// file/env/flag overrides are applied.
func Default() Settings {
	return Settings{
		MsgLoopSleep:        100 * time.Millisecond,
		PoolInitialSize:     128,
		PoolGrowingFactor:   1.0,
		SlotTableSizeLog2:   8,
		LoadFactorThreshold: 0.7,
	}
}

// BindFlags registers the gc.* keys on fs and binds them into v, the usual
// flag/viper wiring for a cobra subcommand's local settings.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) {
	d := Default()

	fs.Int("gc.msg-loop-sleep-ms", int(d.MsgLoopSleep/time.Millisecond), "worker idle backoff, in milliseconds")
	fs.Uint32("gc.mem-blocks-pool.initial-size", d.PoolInitialSize, "block count of the first memory pool chunk")
	fs.Float64("gc.mem-blocks-pool.growing-factor", d.PoolGrowingFactor, "growth factor applied to each new memory pool chunk")
	fs.Uint32("gc.sptr-objects-hash-table.initial-size-log2", d.SlotTableSizeLog2, "log2 of the slot table's initial bucket count")
	fs.Float64("gc.sptr-objects-hash-table.load-factor-threshold", d.LoadFactorThreshold, "unused; carried for fidelity with the original tunable set")

	v.BindPFlag("gc.msg_loop_sleep_ms", fs.Lookup("gc.msg-loop-sleep-ms"))
	v.BindPFlag("gc.mem_blocks_pool.initial_size", fs.Lookup("gc.mem-blocks-pool.initial-size"))
	v.BindPFlag("gc.mem_blocks_pool.growing_factor", fs.Lookup("gc.mem-blocks-pool.growing-factor"))
	v.BindPFlag("gc.sptr_objects_hash_table.initial_size_log2", fs.Lookup("gc.sptr-objects-hash-table.initial-size-log2"))
	v.BindPFlag("gc.sptr_objects_hash_table.load_factor_threshold", fs.Lookup("gc.sptr-objects-hash-table.load-factor-threshold"))
}

// Load reads v (already populated from flags/env/config file by the caller)
// into a Settings value, falling back to Default for anything unset.
func Load(v *viper.Viper) Settings {
	d := Default()

	v.SetDefault("gc.msg_loop_sleep_ms", int(d.MsgLoopSleep/time.Millisecond))
	v.SetDefault("gc.mem_blocks_pool.initial_size", d.PoolInitialSize)
	v.SetDefault("gc.mem_blocks_pool.growing_factor", d.PoolGrowingFactor)
	v.SetDefault("gc.sptr_objects_hash_table.initial_size_log2", d.SlotTableSizeLog2)
	v.SetDefault("gc.sptr_objects_hash_table.load_factor_threshold", d.LoadFactorThreshold)

	return Settings{
		MsgLoopSleep:        time.Duration(v.GetInt64("gc.msg_loop_sleep_ms")) * time.Millisecond,
		PoolInitialSize:     uint32(v.GetUint32("gc.mem_blocks_pool.initial_size")),
		PoolGrowingFactor:   v.GetFloat64("gc.mem_blocks_pool.growing_factor"),
		SlotTableSizeLog2:   uint32(v.GetUint32("gc.sptr_objects_hash_table.initial_size_log2")),
		LoadFactorThreshold: v.GetFloat64("gc.sptr_objects_hash_table.load_factor_threshold"),
	}
}
