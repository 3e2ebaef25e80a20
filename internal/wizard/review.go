package wizard

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const (
	// Premium 年保费固定值，不参与计算
	Premium = 300

	BenefitPackageLegal   = "KSH 100,000"
	BenefitPackageDefault = "KSH 150,000"

	defaultPrincipalName = "John Doe"

	SubmitLabel     = "Buy Policy"
	SubmitBusyLabel = "Processing..."
)

var (
	ErrIncomplete       = errors.New("onboarding not ready for submission")
	ErrAlreadySubmitted = errors.New("policy already submitted")
)

// PolicySubmission 投保请求体，字段名以此为准
type PolicySubmission struct {
	ProductType string            `json:"productType"`
	Principal   *PrincipalDetails `json:"principal"`
	Dependant   *DependantDetails `json:"dependant"`
	Amount      int               `json:"amount"`
}

// BenefitPackage 只区分 legal 与其他
func BenefitPackage(productType string) string {
	if productType == ProductLegal {
		return BenefitPackageLegal
	}
	return BenefitPackageDefault
}

// Controls 复核页按钮状态
type Controls struct {
	BackDisabled   bool   `json:"backDisabled"`
	SubmitDisabled bool   `json:"submitDisabled"`
	SubmitLabel    string `json:"submitLabel"`
	Busy           bool   `json:"busy"`
}

// Summary 复核页的只读摘要
type Summary struct {
	ProductType     string            `json:"productType"`
	BenefitPackage  string            `json:"benefitPackage"`
	PrincipalMember string            `json:"principalMember"`
	Principal       *PrincipalDetails `json:"principal,omitempty"`
	Dependant       *DependantDetails `json:"dependant,omitempty"`
	TotalPremium    int               `json:"totalPremium"`
	PremiumLabel    string            `json:"premiumLabel"`
	Controls        Controls          `json:"controls"`
	IsError         bool              `json:"isError"`
	Message         string            `json:"message,omitempty"`
	Submitted       bool              `json:"submitted"`
}

func (s *State) Summary() Summary {
	principalName := defaultPrincipalName
	if s.Principal != nil && s.Principal.FullName != "" {
		principalName = s.Principal.FullName
	}

	label := SubmitLabel
	if s.IsLoading {
		label = SubmitBusyLabel
	}

	return Summary{
		ProductType:     s.ProductType,
		BenefitPackage:  BenefitPackage(s.ProductType),
		PrincipalMember: principalName,
		Principal:       s.Principal,
		Dependant:       s.Dependant,
		TotalPremium:    Premium,
		PremiumLabel:    fmt.Sprintf("KSH %d", Premium),
		Controls: Controls{
			BackDisabled:   s.IsLoading,
			SubmitDisabled: s.IsLoading || s.Submitted,
			SubmitLabel:    label,
			Busy:           s.IsLoading,
		},
		IsError:   s.IsError,
		Message:   s.Message,
		Submitted: s.Submitted,
	}
}

// BeginSubmission 标记请求进行中并组装投保请求，同一会话同时只允许一个请求。
func (s *State) BeginSubmission() (PolicySubmission, error) {
	switch {
	case s.IsLoading:
		return PolicySubmission{}, ErrSubmissionInFlight
	case s.Submitted:
		return PolicySubmission{}, ErrAlreadySubmitted
	case s.Step != StepReview || s.ProductType == "" || s.Principal == nil || s.Dependant == nil:
		return PolicySubmission{}, ErrIncomplete
	}

	s.IsLoading = true
	s.IsError = false
	s.Message = ""
	s.SubmissionID = uuid.NewString()

	return PolicySubmission{
		ProductType: s.ProductType,
		Principal:   s.Principal,
		Dependant:   s.Dependant,
		Amount:      Premium,
	}, nil
}

// CompleteSubmission 记录投保结果，err 非空时 message 为上游返回的错误内容。
func (s *State) CompleteSubmission(err error, message string) {
	s.IsLoading = false
	s.SubmissionID = ""
	if err != nil {
		s.IsError = true
		s.Message = message
		return
	}
	s.IsError = false
	s.Message = message
	s.Submitted = true
}

// AwaitingResult 会话仍在等待 id 对应的投保结果
func (s *State) AwaitingResult(id string) bool {
	return s.IsLoading && id != "" && s.SubmissionID == id
}

// ProgressStep 进度条中的一项
type ProgressStep struct {
	Step      Step   `json:"step"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
	Current   bool   `json:"current"`
}

// Progress 最后一步永远不显示为已完成
func (s *State) Progress() []ProgressStep {
	steps := make([]ProgressStep, 0, LastStep)
	for step := FirstStep; step <= LastStep; step++ {
		steps = append(steps, ProgressStep{
			Step:      step,
			Title:     step.Title(),
			Completed: step < LastStep && s.Step > step,
			Current:   s.Step == step,
		})
	}
	return steps
}
