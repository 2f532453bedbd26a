package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a SQL injection pattern detected in a
// user utterance.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
}

// CheckUtteranceForInjection screens a raw user utterance with libinjection
// before it is embedded into an SQL-generating prompt. Natural-language
// questions do not trip the detector; smuggled SQL fragments do.
//
// Returns nil if no injection pattern is detected.
func CheckUtteranceForInjection(utterance string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(utterance)
	if !isSQLi {
		return nil
	}

	return &InjectionCheckResult{
		IsSQLi:      true,
		Fingerprint: string(fingerprint),
	}
}
