package model

import "PolicyWizard/internal/wizard"

// ProductRequest 第一步请求体
type ProductRequest struct {
	Product string `json:"product"`
}

// PrincipalRequest 第二步请求体
type PrincipalRequest struct {
	FullName     string `json:"fullName"`
	DateOfBirth  string `json:"dateOfBirth"`
	NationalID   string `json:"nationalId"`
	Gender       string `json:"gender"`
	Address      string `json:"address"`
	MobileNumber string `json:"mobileNumber"`
}

func (r PrincipalRequest) Details() wizard.PrincipalDetails {
	return wizard.PrincipalDetails{
		FullName:     r.FullName,
		DateOfBirth:  r.DateOfBirth,
		NationalID:   r.NationalID,
		Gender:       r.Gender,
		Address:      r.Address,
		MobileNumber: r.MobileNumber,
	}
}

// DependantRequest 第三步请求体
type DependantRequest struct {
	FullName     string `json:"fullName"`
	DateOfBirth  string `json:"dateOfBirth"`
	NationalID   string `json:"nationalId"`
	Gender       string `json:"gender"`
	Relationship string `json:"relationship"`
	MobileNumber string `json:"mobileNumber"`
}

func (r DependantRequest) Details() wizard.DependantDetails {
	return wizard.DependantDetails{
		FullName:     r.FullName,
		DateOfBirth:  r.DateOfBirth,
		NationalID:   r.NationalID,
		Gender:       r.Gender,
		Relationship: r.Relationship,
		MobileNumber: r.MobileNumber,
	}
}

// OnboardingView 向导当前状态及进度条
type OnboardingView struct {
	State    *wizard.State         `json:"state"`
	Progress []wizard.ProgressStep `json:"progress"`
}

func NewOnboardingView(state *wizard.State) OnboardingView {
	return OnboardingView{State: state, Progress: state.Progress()}
}

// SubmitResponse 投保结果
type SubmitResponse struct {
	State   *wizard.State `json:"state"`
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Policy  interface{}   `json:"policy,omitempty"`
}
