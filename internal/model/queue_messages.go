package model

import "PolicyWizard/internal/wizard"

// PolicySubmittedMessage 投保成功事件，消费方按 MessageID 幂等
type PolicySubmittedMessage struct {
	MessageID   string                  `json:"message_id"`
	SessionID   string                  `json:"session_id"`
	SubmittedAt string                  `json:"submitted_at"`
	Status      int                     `json:"status"`
	Submission  wizard.PolicySubmission `json:"submission"`
}
