// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package checkpoint

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain guards every test in this package against a leaked goroutine;
// the checkpoint manager itself is synchronous, so this exists to keep the
// same discipline as the archival package's background job tests.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
