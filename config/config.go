// Package config is the thin outer shell that decodes the daemon's JSON
// bootstrap file into a resolved Options struct. The core packages never
// import this package; they receive Options values constructed here.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package config

import (
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/jkluft/conartist/cmn/cos"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Endpoint is an opaque listen address bound to a named stream sink; the
// socket code that would actually bind it is out of scope.
type Endpoint struct {
	Listen     string `json:"listen"`
	StreamSink string `json:"stream_sink"`
}

// StreamDefaults bounds newly created streams absent a per-request
// override.
type StreamDefaults struct {
	FileSize     int64  `json:"file_size"`
	IDsCapacity  uint32 `json:"ids_capacity"`
	ItemCapacity uint32 `json:"item_capacity"`
}

// JobManager sizes the worker pool and its rings.
type JobManager struct {
	Workers          int `json:"workers"`
	PendingCapacity  int `json:"pending_capacity"`
	MaxChannels      int `json:"max_channels"`
	MappingsRingCap  int `json:"mappings_ring_capacity"`
	RequestsRingCap  int `json:"requests_ring_capacity"`
}

// Registry sizes the sharded user-id registry.
type Registry struct {
	Capacity  int `json:"capacity"`
	ShardBits int `json:"shard_bits"`
}

// Options is the fully resolved bootstrap configuration.
type Options struct {
	BasePath       string         `json:"base_path"`
	MappingFile    string         `json:"mapping_file"`
	StreamDefaults StreamDefaults `json:"stream_defaults"`
	JobManager     JobManager     `json:"job_manager"`
	Registry       Registry       `json:"registry"`
	Endpoints      []Endpoint     `json:"endpoints"`
	AdminListen    string         `json:"admin_listen"`
}

// Load reads and decodes path into an Options value.
func Load(path string) (Options, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Options{}, cos.NewIOErr("read", path, err)
	}
	var o Options
	if err := json.Unmarshal(b, &o); err != nil {
		return Options{}, cos.NewIOErr("unmarshal", path, err)
	}
	if o.BasePath == "" {
		return Options{}, cos.ErrInvalidArgument
	}
	return o, nil
}
