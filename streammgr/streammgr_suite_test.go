// Package streammgr holds the directory of all open streams.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package streammgr_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestStreamMgr(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, t.Name())
}
