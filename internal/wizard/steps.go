package wizard

import (
	"errors"
	"strings"
	"time"
)

const (
	ProductLegal   = "legal"
	ProductMedical = "medical"

	// DateLayout 出生日期统一保存为 yyyy-MM-dd
	DateLayout = "2006-01-02"
)

var (
	ErrStepMismatch       = errors.New("submitted step does not match current step")
	ErrSubmissionInFlight = errors.New("policy submission in flight")
)

// ProductSchema 产品选择只有一个字段，必须是两个固定产品之一。
var ProductSchema = Schema{
	{Field: "product", Tag: "required,oneof=" + ProductLegal + " " + ProductMedical, Message: "Please select a product."},
}

var PrincipalSchema = Schema{
	{Field: "fullName", Tag: "required,min=2", Message: "Full name must be at least 2 characters."},
	{Field: "dateOfBirth", Tag: "required,min=6", Message: "Date of birth must be at least 6 characters."},
	{Field: "nationalId", Tag: "required,min=8", Message: "National ID must be at least 8 characters."},
	{Field: "gender", Tag: "required,min=2", Message: "Gender must be at least 2 characters."},
	{Field: "address", Tag: "required,min=2", Message: "Address must be at least 2 characters."},
	{Field: "mobileNumber", Tag: "required,min=10", Message: "Mobile number must be at least 10 characters."},
}

var DependantSchema = Schema{
	{Field: "fullName", Tag: "required,min=2", Message: "Full name must be at least 2 characters."},
	{Field: "dateOfBirth", Tag: "required", Message: "Date of birth is required."},
	{Field: "nationalId", Tag: "required,min=6", Message: "National ID must be at least 6 characters."},
	{Field: "mobileNumber", Tag: "required,min=10", Message: "Mobile number must be at least 10 digits."},
	{Field: "gender", Tag: "required,min=4", Message: "Please select a gender."},
	{Field: "relationship", Tag: "required", Message: "Please select a relationship."},
}

func (p PrincipalDetails) values() map[string]string {
	return map[string]string{
		"fullName":     p.FullName,
		"dateOfBirth":  p.DateOfBirth,
		"nationalId":   p.NationalID,
		"gender":       p.Gender,
		"address":      p.Address,
		"mobileNumber": p.MobileNumber,
	}
}

func (d DependantDetails) values() map[string]string {
	return map[string]string{
		"fullName":     d.FullName,
		"dateOfBirth":  d.DateOfBirth,
		"nationalId":   d.NationalID,
		"gender":       d.Gender,
		"relationship": d.Relationship,
		"mobileNumber": d.MobileNumber,
	}
}

// NormalizeDate 将 yyyy-MM-dd 或 ISO 8601 时间串统一为 yyyy-MM-dd，无法解析时原样返回。
func NormalizeDate(value string) string {
	trimmed := strings.TrimSpace(value)
	for _, layout := range []string{DateLayout, time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format(DateLayout)
		}
	}
	return value
}

func (s *State) expect(step Step) error {
	if s.IsLoading {
		return ErrSubmissionInFlight
	}
	if s.Step != step {
		return ErrStepMismatch
	}
	return nil
}

// SubmitProduct 提交第一步，成功后写入产品并前进。
func (s *State) SubmitProduct(product string) error {
	if err := s.expect(StepSelectProduct); err != nil {
		return err
	}
	product = strings.TrimSpace(product)
	if errs := ProductSchema.Validate(map[string]string{"product": product}); errs != nil {
		return &ValidationError{Step: StepSelectProduct, Fields: errs}
	}

	s.SetProductType(product)
	s.Advance()
	return nil
}

// SubmitPrincipal 提交第二步
func (s *State) SubmitPrincipal(details PrincipalDetails) error {
	if err := s.expect(StepPrincipalDetails); err != nil {
		return err
	}
	details.DateOfBirth = NormalizeDate(details.DateOfBirth)
	if errs := PrincipalSchema.Validate(details.values()); errs != nil {
		return &ValidationError{Step: StepPrincipalDetails, Fields: errs}
	}

	s.SetPrincipal(&details)
	s.Advance()
	return nil
}

// SubmitDependant 提交第三步
func (s *State) SubmitDependant(details DependantDetails) error {
	if err := s.expect(StepDependantDetails); err != nil {
		return err
	}
	details.DateOfBirth = NormalizeDate(details.DateOfBirth)
	if errs := DependantSchema.Validate(details.values()); errs != nil {
		return &ValidationError{Step: StepDependantDetails, Fields: errs}
	}

	s.SetDependant(&details)
	s.Advance()
	return nil
}

// Back 不做任何校验直接后退；投保请求进行中时按钮处于禁用状态。
func (s *State) Back() error {
	if s.IsLoading {
		return ErrSubmissionInFlight
	}
	s.Retreat()
	return nil
}
