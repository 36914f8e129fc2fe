package hops

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Amplitude is the serialized form of one complex coefficient.
type Amplitude struct {
	Re float64 `yaml:"re" json:"re"`
	Im float64 `yaml:"im" json:"im"`
}

// component encodes non-finite floats as "NaN", "+Inf" or "-Inf" so any
// initial state survives JSON persistence.
type component float64

func (c component) MarshalJSON() ([]byte, error) {
	v := float64(c)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(v)
}

func (c *component) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid amplitude component %q", s)
		}
		*c = component(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = component(v)
	return nil
}

type amplitudeJSON struct {
	Re component `json:"re"`
	Im component `json:"im"`
}

func (a Amplitude) MarshalJSON() ([]byte, error) {
	return json.Marshal(amplitudeJSON{Re: component(a.Re), Im: component(a.Im)})
}

func (a *Amplitude) UnmarshalJSON(data []byte) error {
	var aj amplitudeJSON
	if err := json.Unmarshal(data, &aj); err != nil {
		return err
	}
	a.Re, a.Im = float64(aj.Re), float64(aj.Im)
	return nil
}

// WaveFunction is the initial state vector handed to a trajectory.
type WaveFunction []complex128

// ParseWaveFunction builds a wave function from serialized amplitudes.
// Values are copied as-is; no normalization is applied.
func ParseWaveFunction(amps []Amplitude) WaveFunction {
	if amps == nil {
		return nil
	}
	psi := make(WaveFunction, len(amps))
	for i, a := range amps {
		psi[i] = complex(a.Re, a.Im)
	}
	return psi
}

// Amplitudes converts the wave function back to its serialized form.
func (w WaveFunction) Amplitudes() []Amplitude {
	if w == nil {
		return nil
	}
	amps := make([]Amplitude, len(w))
	for i, c := range w {
		amps[i] = Amplitude{Re: real(c), Im: imag(c)}
	}
	return amps
}

// Dim is the number of amplitudes.
func (w WaveFunction) Dim() int { return len(w) }
