package audio

import (
	"errors"
	"fmt"
)

type Encoding string

const (
	EncodingFloat32 Encoding = "f32"
	EncodingPCM16   Encoding = "s16"

	MinSampleRate = 8000
	MaxSampleRate = 192000
)

var ErrBadFormat = errors.New("unsupported mic format")

// Format describes the binary mic frames a client sends.
type Format struct {
	Rate     int      `json:"rate"`
	Encoding Encoding `json:"encoding"`
}

// DefaultFormat is assumed until a client declares its own.
var DefaultFormat = Format{Rate: InputSampleRate, Encoding: EncodingFloat32}

// Normalize fills an empty encoding and checks the rate range.
func (f Format) Normalize() (Format, error) {
	if f.Encoding == "" {
		f.Encoding = EncodingFloat32
	}
	if f.Encoding != EncodingFloat32 && f.Encoding != EncodingPCM16 {
		return Format{}, fmt.Errorf("%w: encoding %q", ErrBadFormat, f.Encoding)
	}
	if f.Rate < MinSampleRate || f.Rate > MaxSampleRate {
		return Format{}, fmt.Errorf("%w: rate %d", ErrBadFormat, f.Rate)
	}
	return f, nil
}

// ToInput decodes a frame in format f and resamples it to InputSampleRate.
func (f Format) ToInput(frame []byte) ([]float32, error) {
	var (
		samples []float32
		err     error
	)
	switch f.Encoding {
	case EncodingPCM16:
		samples, err = DecodePCM16(frame)
	default:
		samples, err = DecodeFloat32(frame)
	}
	if err != nil {
		return nil, err
	}
	return Resample(samples, f.Rate, InputSampleRate), nil
}
