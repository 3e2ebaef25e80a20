// Package wizard 实现投保向导的状态机：选择产品、主被保人、附属被保人、复核提交四个步骤。
package wizard

// Step 表示向导的步骤编号，从 1 开始。
type Step int

const (
	StepSelectProduct    Step = 1
	StepPrincipalDetails Step = 2
	StepDependantDetails Step = 3
	StepReview           Step = 4

	FirstStep = StepSelectProduct
	LastStep  = StepReview
)

var stepTitles = map[Step]string{
	StepSelectProduct:    "Select Product",
	StepPrincipalDetails: "Principal Details",
	StepDependantDetails: "Add dependants",
	StepReview:           "Review & Pay",
}

// Title 返回步骤在进度条上的标题
func (s Step) Title() string {
	return stepTitles[s]
}

func (s Step) Valid() bool {
	return s >= FirstStep && s <= LastStep
}

// PrincipalDetails 主被保人信息
type PrincipalDetails struct {
	FullName     string `json:"fullName"`
	DateOfBirth  string `json:"dateOfBirth"`
	NationalID   string `json:"nationalId"`
	Gender       string `json:"gender"`
	Address      string `json:"address"`
	MobileNumber string `json:"mobileNumber"`
}

// DependantDetails 附属被保人信息
type DependantDetails struct {
	FullName     string `json:"fullName"`
	DateOfBirth  string `json:"dateOfBirth"`
	NationalID   string `json:"nationalId"`
	Gender       string `json:"gender"`
	Relationship string `json:"relationship"`
	MobileNumber string `json:"mobileNumber"`
}

// State 是单个向导会话的全部状态，只能通过本包定义的转换修改。
type State struct {
	Step        Step              `json:"step"`
	ProductType string            `json:"productType"`
	Principal   *PrincipalDetails `json:"principal,omitempty"`
	Dependant   *DependantDetails `json:"dependant,omitempty"`
	IsLoading   bool              `json:"isLoading"`
	IsError     bool              `json:"isError"`
	Message     string            `json:"message"`
	// Submitted 在投保接口成功返回后置位，阻止重复提交
	Submitted bool `json:"submitted"`
	// SubmissionID 标识进行中的投保请求，回写结果时用于确认仍是同一次提交
	SubmissionID string `json:"submissionId,omitempty"`
}

// NewState 返回处于第一步的空状态
func NewState() *State {
	return &State{Step: FirstStep}
}

// Advance 前进一步，到复核步骤后不再增加。
func (s *State) Advance() {
	if s.Step < LastStep {
		s.Step++
	}
}

// Retreat 后退一步，最小为第一步。
func (s *State) Retreat() {
	if s.Step > FirstStep {
		s.Step--
	}
}

func (s *State) SetProductType(value string) {
	s.ProductType = value
}

// SetPrincipal 整体覆盖主被保人信息，传 nil 表示清空
func (s *State) SetPrincipal(details *PrincipalDetails) {
	if details == nil {
		s.Principal = nil
		return
	}
	copied := *details
	s.Principal = &copied
}

// SetDependant 整体覆盖附属被保人信息，传 nil 表示清空
func (s *State) SetDependant(details *DependantDetails) {
	if details == nil {
		s.Dependant = nil
		return
	}
	copied := *details
	s.Dependant = &copied
}

// Normalize 修正从存储中读出的越界步骤
func (s *State) Normalize() {
	switch {
	case s.Step < FirstStep:
		s.Step = FirstStep
	case s.Step > LastStep:
		s.Step = LastStep
	}
}
