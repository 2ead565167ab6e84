// Package usertype holds the shape of the user-type lookup table: a
// static mapping from a source-reported type byte to the unit and
// value-type the write façade should use for it. The original system
// ships a large, domain-specific enumeration of this table; per
// spec.md §1 it is an external data input to the core, so only the
// table's shape and a handful of representative entries live here.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package usertype

// ValueType names the on-disk encoding a write-façade call should use
// for a given user type.
type ValueType int

const (
	U8 ValueType = iota
	U16
	U32
	F32
	Fixed
	Variable
)

// Descriptor pairs a unit label with the encoding used for it.
type Descriptor struct {
	Unit  string
	Value ValueType
	// Size is the fixed payload size in bytes for Fixed-type entries;
	// zero for Variable and for the scalar types, whose size is implied
	// by Value.
	Size int
}

// Table looks up a Descriptor by user-type byte. Entries beyond this
// representative handful are a content, not architecture, concern and
// are supplied by deployment configuration, not this package.
var Table = map[uint8]Descriptor{
	0x01: {Unit: "celsius", Value: F32},
	0x02: {Unit: "percent-rh", Value: F32},
	0x03: {Unit: "lux", Value: U32},
	0x04: {Unit: "boolean", Value: U8},
	0x05: {Unit: "counter", Value: U16},
	0x06: {Unit: "raw-frame", Value: Variable},
	0x07: {Unit: "accel-xyz", Value: Fixed, Size: 12},
}

// Lookup resolves t, reporting ok=false for an unrecognized type.
func Lookup(t uint8) (Descriptor, bool) {
	d, ok := Table[t]
	return d, ok
}
