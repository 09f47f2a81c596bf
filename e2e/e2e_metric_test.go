//go:build e2e

// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package e2e_test

import (
	"net/http"
	"os"

	"github.com/jszwec/csvutil"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// traceRow mirrors the columns of the csv trace
type traceRow struct {
	Kind    string  `csv:"kind"`
	Subject string  `csv:"subject"`
	Name    string  `csv:"name"`
	Value   float64 `csv:"value"`
}

func scrape() (map[string]*dto.MetricFamily, error) {
	resp, err := http.Get("http://" + address + "/metrics")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parser expfmt.TextParser
	return parser.TextToMetricFamilies(resp.Body)
}

var _ = Describe("Metrics check should pass", Ordered, func() {
	var families map[string]*dto.MetricFamily

	BeforeAll(func() {
		Eventually(func() (int, error) {
			var err error
			families, err = scrape()
			if err != nil {
				return 0, err
			}
			return len(families["deepmon_container_cpu_watts"].GetMetric()), nil
		}, timeout, poolingInterval).Should(BeNumerically(">", 0))
	})

	DescribeTable("exposes metric family", func(name string) {
		Expect(families).To(HaveKey(name))
		Expect(families[name].GetMetric()).NotTo(BeEmpty())
	},
		Entry(nil, "deepmon_build_info"),
		Entry(nil, "deepmon_node_cpu_info"),
		Entry(nil, "deepmon_node_cpu_watts"),
		Entry(nil, "deepmon_node_context_switches"),
		Entry(nil, "deepmon_thread_cpu_watts"),
		Entry(nil, "deepmon_container_cpu_watts"),
		Entry(nil, "deepmon_container_ipc"),
	)

	It("reports the idle bucket", func() {
		ids := []string{}
		for _, m := range families["deepmon_container_cpu_watts"].GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "container_id" {
					ids = append(ids, l.GetValue())
				}
			}
		}
		Expect(ids).To(ContainElement("idle"))
	})

	It("writes the csv trace", func() {
		var rows []traceRow
		Eventually(func() ([]traceRow, error) {
			data, err := os.ReadFile(csvPath)
			if err != nil {
				return nil, err
			}
			rows = nil
			err = csvutil.Unmarshal(data, &rows)
			return rows, err
		}, timeout, poolingInterval).ShouldNot(BeEmpty())

		kinds := map[string]bool{}
		for _, r := range rows {
			kinds[r.Kind] = true
		}
		Expect(kinds).To(HaveKey("sample"))
		Expect(kinds).To(HaveKey("container"))
	})
})
