//go:build e2e

// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package e2e_test

import (
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("request check should pass", func() {
	DescribeTable("Test with endpoints with requests", func(path string) {
		Eventually(func() (int, error) {
			resp, err := http.Get("http://" + address + "/" + path)
			if err != nil {
				return 0, err
			}
			defer resp.Body.Close()
			return resp.StatusCode, nil
		}, timeout, poolingInterval).Should(Equal(http.StatusOK))
	},
		Entry("landing page", ""),
		Entry("metrics", "metrics"),
		Entry("liveness probe", "probe/livez"),
		Entry("readiness probe", "probe/readyz"),
	)
})
