// Package respool pools JSON result containers (maps and slices) for
// shaping query_memory/analyze_graph responses, to cut GC pressure. No other
// package in this module imports it.
package respool

import "sync"

// MapPool pools map[string]interface{} for JSON result objects.
var MapPool = sync.Pool{
	New: func() interface{} {
		return make(map[string]interface{}, 8)
	},
}

// SlicePool pools []interface{} for JSON result arrays.
var SlicePool = sync.Pool{
	New: func() interface{} {
		return make([]interface{}, 0, 32)
	},
}

// GetMap gets a cleared map from the pool.
func GetMap() map[string]interface{} {
	m := MapPool.Get().(map[string]interface{})
	for k := range m {
		delete(m, k)
	}
	return m
}

// PutMap returns a map to the pool.
func PutMap(m map[string]interface{}) {
	MapPool.Put(m)
}

// GetSlice gets a zero-length slice from the pool.
func GetSlice() []interface{} {
	s := SlicePool.Get().([]interface{})
	return s[:0]
}

// PutSlice returns a slice to the pool.
func PutSlice(s []interface{}) {
	SlicePool.Put(s)
}
