// Package request implements the stream-request pipeline: asynchronous
// stream-file creation once a name mapping for a user-id is known, plus
// the double-buffered reload of the external id-to-name mapping file.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package request

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tidwall/buntdb"

	"github.com/jkluft/conartist/cmn/cos"
)

// statMtime returns path's modification time.
func statMtime(path string) (time.Time, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, cos.NewIOErr("stat", path, err)
	}
	return fi.ModTime(), nil
}

// idKey renders id as a fixed-width hex string so buntdb's default
// key-ordered index doubles as a sorted, binary-searchable id index —
// the "sorted view; binary search on id" behavior §3 calls for.
func idKey(id uint64) string { return fmt.Sprintf("%016x", id) }

// parseMappingLine parses one "ID=NAME" line. ID is either 12 hex digits
// or colon-separated XX:XX:XX:XX:XX:XX. NAME is truncated to 63
// characters, never rejected for length; any other malformed line is
// rejected outright (caller skips it and keeps parsing).
func parseMappingLine(line string) (id uint64, name string, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, "", cos.ErrInvalidArgument
	}
	eq := strings.IndexByte(line, '=')
	if eq < 0 {
		return 0, "", cos.ErrInvalidArgument
	}
	id, err = parseID(line[:eq])
	if err != nil {
		return 0, "", err
	}
	name = line[eq+1:]
	if name == "" {
		return 0, "", cos.ErrInvalidArgument
	}
	if len(name) > 63 {
		name = name[:63]
	}
	return id, name, nil
}

func parseID(s string) (uint64, error) {
	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		if len(parts) != 6 {
			return 0, cos.ErrInvalidArgument
		}
		s = strings.Join(parts, "")
	}
	if len(s) != 12 {
		return 0, cos.ErrInvalidArgument
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 6 {
		return 0, cos.ErrInvalidArgument
	}
	var id uint64
	for _, c := range b {
		id = id<<8 | uint64(c)
	}
	return id, nil
}

// loadMappingFile parses path into a fresh in-memory buntdb database
// keyed by idKey, with a secondary index over the name for reverse
// lookups (diagnostics, admin listing). A malformed individual line is
// dropped; it does not fail the whole reload.
func loadMappingFile(path string) (*buntdb.DB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, cos.NewIOErr("open", path, err)
	}
	defer f.Close()

	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, err
	}
	if err := db.CreateIndex("by_name", "*", buntdb.IndexString); err != nil {
		db.Close()
		return nil, err
	}

	sc := bufio.NewScanner(f)
	err = db.Update(func(tx *buntdb.Tx) error {
		for sc.Scan() {
			id, name, perr := parseMappingLine(sc.Text())
			if perr != nil {
				continue
			}
			if _, _, err := tx.Set(idKey(id), name, nil); err != nil {
				return err
			}
		}
		return sc.Err()
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// findName looks up the name mapped to id in db. db may be nil (no
// mapping loaded yet), in which case ok is always false.
func findName(db *buntdb.DB, id uint64) (name string, ok bool) {
	if db == nil {
		return "", false
	}
	err := db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(idKey(id))
		if err != nil {
			return err
		}
		name = v
		return nil
	})
	return name, err == nil
}
