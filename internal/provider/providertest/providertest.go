// Package providertest provides shared conformance tests for provider.Provider
// implementations. Call RunAll from a test function to verify a provider
// satisfies the full behavioral contract.
package providertest

import (
	"testing"

	"github.com/dwsmith1983/standbyprobe/internal/provider"
)

// RunAll runs the complete provider conformance suite as subtests.
func RunAll(t *testing.T, prov provider.Provider) {
	t.Helper()

	t.Run("ResultPutGet", func(t *testing.T) { TestResultPutGet(t, prov) })
	t.Run("ResultMissing", func(t *testing.T) { TestResultMissing(t, prov) })
	t.Run("ResultListNewestFirst", func(t *testing.T) { TestResultListNewestFirst(t, prov) })
	t.Run("ResultListAll", func(t *testing.T) { TestResultListAll(t, prov) })
	t.Run("AlertPutList", func(t *testing.T) { TestAlertPutList(t, prov) })
}
