// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package memerr

// Preflight codes form a parallel PF001-PF031 namespace (spec §4.13) with
// the same {hint, actions, severity} structural contract as the E-series.
const (
	PF001AnchorMalformedID  = "PF001"
	PF002AnchorUnclosed     = "PF002"
	PF003AnchorDuplicateID  = "PF003"
	PF010ExactDuplicate     = "PF010"
	PF011SimilarDuplicate   = "PF011"
	PF020TokenBudgetWarning = "PF020"
	PF021TokenBudgetExceeded = "PF021"
	PF030ContentTooShort    = "PF030"
	PF031ContentTooLong     = "PF031"
)

func init() {
	genericHints[PF001AnchorMalformedID] = recoveryHint{Hint: "Anchor id does not match the allowed identifier pattern.", Actions: []string{"use letters, digits, hyphen, and slash only"}, Severity: SeverityLow}
	genericHints[PF002AnchorUnclosed] = recoveryHint{Hint: "An ANCHOR open tag has no matching close tag.", Actions: []string{"add the matching /ANCHOR tag"}, Severity: SeverityLow}
	genericHints[PF003AnchorDuplicateID] = recoveryHint{Hint: "Two anchors in this document share an id.", Actions: []string{"rename one of the anchors"}, Severity: SeverityLow}
	genericHints[PF010ExactDuplicate] = recoveryHint{Hint: "Content is byte-identical to an existing memory.", Actions: []string{"reuse the existing memory id"}, Severity: SeverityLow}
	genericHints[PF011SimilarDuplicate] = recoveryHint{Hint: "Content is highly similar to an existing memory.", Actions: []string{"consider updating the existing memory instead"}, Severity: SeverityLow}
	genericHints[PF020TokenBudgetWarning] = recoveryHint{Hint: "Content is approaching the token budget.", Actions: []string{"consider trimming before it grows further"}, Severity: SeverityLow}
	genericHints[PF021TokenBudgetExceeded] = recoveryHint{Hint: "Content exceeds the token budget.", Actions: []string{"shorten the content"}, Severity: SeverityLow}
	genericHints[PF030ContentTooShort] = recoveryHint{Hint: "Content is below the configured minimum length.", Actions: []string{"expand the content"}, Severity: SeverityLow}
	genericHints[PF031ContentTooLong] = recoveryHint{Hint: "Content exceeds the configured maximum length.", Actions: []string{"split into multiple memories"}, Severity: SeverityLow}
}
