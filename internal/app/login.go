package app

import (
	"errors"
	"unicode/utf8"
)

const (
	MinPhoneLen = 10
	OTPLen      = 6
)

var (
	ErrPhoneTooShort = errors.New("phone number too short")
	ErrOTPLength     = errors.New("otp must be 6 characters")
	ErrLoginStep     = errors.New("wrong login step")
)

type LoginStep string

const (
	StepPhone LoginStep = "phone"
	StepOTP   LoginStep = "otp"
	StepDone  LoginStep = "done"
)

// LoginFlow is the two-step phone/OTP gate in front of the room.
// Nothing is verified against a provider; only the raw input length is checked.
// The zero value starts at the phone step.
type LoginFlow struct {
	Step  LoginStep `json:"step"`
	Phone string    `json:"phone,omitempty"`
}

func (f LoginFlow) current() LoginStep {
	if f.Step == "" {
		return StepPhone
	}
	return f.Step
}

func (f *LoginFlow) SubmitPhone(phone string) error {
	if f.current() != StepPhone {
		return ErrLoginStep
	}
	if utf8.RuneCountInString(phone) < MinPhoneLen {
		return ErrPhoneTooShort
	}
	f.Phone = phone
	f.Step = StepOTP
	return nil
}

func (f *LoginFlow) SubmitOTP(otp string) error {
	if f.current() != StepOTP {
		return ErrLoginStep
	}
	if utf8.RuneCountInString(otp) != OTPLen {
		return ErrOTPLength
	}
	f.Step = StepDone
	return nil
}

// ChangeNumber returns to the phone step.
func (f *LoginFlow) ChangeNumber() {
	f.Step = StepPhone
	f.Phone = ""
}

func (f LoginFlow) Done() bool { return f.Step == StepDone }
