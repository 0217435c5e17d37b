// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package embedding

import (
	"context"
	"fmt"
)

// ValidateAPIKey runs the §6 pre-flight credential probe for a provider.
// Providers that don't implement CredentialValidator (local/sentinel tiers)
// are treated as always valid since they never need a remote credential.
func ValidateAPIKey(ctx context.Context, p Provider) (ValidationResult, error) {
	validator, ok := p.(CredentialValidator)
	if !ok {
		return ValidationResult{Valid: true, Provider: p.Profile().Provider}, nil
	}
	result, err := validator.ValidateCredentials(ctx)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("validate credentials for %s: %w", p.Profile().Provider, err)
	}
	return result, nil
}
