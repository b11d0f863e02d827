package registry

import "time"

// Default returns the shipped puzzle catalog.
func Default() *Registry {
	return New([]Definition{
		{
			ID:          "terminal_access",
			Name:        "Terminal Access",
			Description: "Recover the station password scattered through the intake footage.",
			Difficulty:  Easy,
			PhaseGate:   0,
			Rewards:     []string{"doc_intake_memo"},
			TimeBudget:  0, // untimed
			Enabled:     true,
		},
		{
			ID:          "signal_memory",
			Name:        "Signal Memory",
			Description: "Repeat the broadcast tone sequence before the carrier drops.",
			Difficulty:  Easy,
			PhaseGate:   0,
			Rewards:     []string{"audio_log_01"},
			TimeBudget:  60 * time.Second,
			Enabled:     true,
		},
		{
			ID:          "vhs_splice",
			Name:        "Tape Splice",
			Description: "Reorder the spliced frames of tape 2 into broadcast order.",
			Difficulty:  Easy,
			PhaseGate:   1,
			Prerequisites: []string{
				"terminal_access",
			},
			Rewards:    []string{"doc_splice_notes", "audio_log_02"},
			TimeBudget: 90 * time.Second,
			Enabled:    true,
		},
		{
			ID:          "caesar_static",
			Name:        "Static Cipher",
			Description: "Decode the shifted message hidden in the static between segments.",
			Difficulty:  Medium,
			PhaseGate:   1,
			Prerequisites: []string{
				"signal_memory",
			},
			Rewards:    []string{"doc_cipher_key"},
			TimeBudget: 120 * time.Second,
			Enabled:    true,
		},
		{
			ID:          "control_room",
			Name:        "Control Room",
			Description: "Restore the switchboard using the engineer's torn schematic.",
			Difficulty:  Medium,
			PhaseGate:   2,
			Prerequisites: []string{
				"vhs_splice",
				"caesar_static",
			},
			Rewards:    []string{"doc_engineer_diary"},
			TimeBudget: 180 * time.Second,
			Enabled:    true,
		},
		{
			ID:          "archive_vault",
			Name:        "Archive Vault",
			Description: "Crack the vault combination buried in the catalog cards.",
			Difficulty:  Hard,
			PhaseGate:   2,
			Prerequisites: []string{
				"control_room",
			},
			Rewards:    []string{"audio_log_03", "doc_vault_manifest"},
			TimeBudget: 240 * time.Second,
			Enabled:    true,
		},
		{
			ID:          "final_broadcast",
			Name:        "The Final Broadcast",
			Description: "Assemble every recovered fragment and tune in.",
			Difficulty:  Hard,
			PhaseGate:   3,
			Prerequisites: []string{
				"archive_vault",
			},
			Rewards:    []string{"doc_final_transmission"},
			TimeBudget: 300 * time.Second,
			Enabled:    true,
		},
	})
}
