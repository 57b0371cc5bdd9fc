// Phase 18 - E2E Test Placeholder
// This file contains skeleton E2E tests for reporting module.
package e2e_test

import (
	"testing"
)

// TestReportingPlaceholder is a placeholder test for reporting module.
func TestReportingPlaceholder(t *testing.T) {
	if env == nil {
		t.Skip("test environment not initialized")
	}
	t.Log("Reporting E2E test placeholder - implement actual tests")
}

//Personal.AI order the ending
