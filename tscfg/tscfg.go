// Package tscfg holds the engine's runtime configuration (spec §6,
// "Configuration options") and the atomically-swappable global config
// owner every other package reads through.
//
// Grounded on the teacher's cmn.GCO global-config-owner pattern
// (cmn.GCO.Get() returning an atomically-loaded immutable snapshot): GCO
// here wraps a go.uber.org/atomic.Pointer the same way, so a config reload
// never races a reader mid-request.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package tscfg

import (
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/atomic"
	"gopkg.in/yaml.v3"

	"github.com/ThingSet/thingset-device-library-sub000/status"
)

var jsonc = jsoniter.ConfigCompatibleWithStandardLibrary

// Config carries every option spec §6 recognizes.
type Config struct {
	CoreLocID  uint8 `json:"core_locid" yaml:"core_locid"`
	LocalCount uint8 `json:"local_count" yaml:"local_count"`

	RemoteCount       uint8 `json:"remote_count" yaml:"remote_count"`
	RemoteObjectCount int   `json:"remote_object_count" yaml:"remote_object_count"`

	PortCount uint8 `json:"port_count" yaml:"port_count"`

	BufCount    int `json:"buf_count" yaml:"buf_count"`
	BufDataSize int `json:"buf_data_size" yaml:"buf_data_size"`

	VerboseStatusMessages bool `json:"verbose_status_messages" yaml:"verbose_status_messages"`

	DecFracTypeSupport     bool `json:"decfrac_type_support" yaml:"decfrac_type_support"`
	Int64TypeSupport       bool `json:"64bit_types_support" yaml:"64bit_types_support"`
	ByteStringTypeSupport bool `json:"byte_string_type_support" yaml:"byte_string_type_support"`

	// PeerTableSize bounds tscontext.Com's fixed-size peer table (spec §4.12).
	PeerTableSize int `json:"peer_table_size" yaml:"peer_table_size"`
}

// Default returns the configuration the spec names as defaults where it
// states one (CORE_LOCID = 0) and otherwise conservative values sized for
// a single embedded node.
func Default() *Config {
	return &Config{
		CoreLocID:             0,
		LocalCount:            1,
		RemoteCount:           0,
		RemoteObjectCount:     0,
		PortCount:             1,
		BufCount:              8,
		BufDataSize:           512,
		VerboseStatusMessages: true,
		DecFracTypeSupport:    true,
		Int64TypeSupport:      true,
		ByteStringTypeSupport: true,
		PeerTableSize:         8,
	}
}

// Load reads a YAML or JSON file (selected by extension; .yml/.yaml use
// gopkg.in/yaml.v3, anything else falls back to json-iterator/go) into a
// Config seeded from Default, so an omitted field keeps its default rather
// than zeroing out.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, status.ErrNotFound("tscfg: reading %s: %v", path, err)
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, status.ErrBadRequest("tscfg: parsing %s as yaml: %v", path, err)
		}
	default:
		if err := jsonc.Unmarshal(data, cfg); err != nil {
			return nil, status.ErrBadRequest("tscfg: parsing %s as json: %v", path, err)
		}
	}
	return cfg, nil
}

// gco is the global config owner: an atomically-swappable pointer to the
// currently active Config, mirroring cmn.GCO.
type gco struct {
	cur atomic.Pointer[Config]
}

// GCO is the package-level global config owner every other package reads
// through, the same role cmn.GCO plays in the teacher.
var GCO = &gco{}

func init() {
	GCO.cur.Store(Default())
}

// Get returns the currently active Config snapshot. Safe for concurrent use.
func (g *gco) Get() *Config {
	return g.cur.Load()
}

// Put installs cfg as the active snapshot, visible to subsequent Get calls
// from any goroutine.
func (g *gco) Put(cfg *Config) {
	g.cur.Store(cfg)
}
