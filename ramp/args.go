package ramp

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/origami-ms/wrensramp/util"
)

// number of comma separated fields in the argument string of each mode
var argCounts = map[Mode]int{
	Linear:       8,
	ExplicitList: 5,
	Exponential:  10,
}

// ArgCount is the number of positional fields the argument string of mode has
func ArgCount(m Mode) int {
	return argCounts[m]
}

type argReader struct {
	fields []string
	err    error
}

func (a *argReader) str(i int) string {
	return strings.TrimSpace(a.fields[i])
}

func (a *argReader) atoi(i int, name string) int {
	if a.err != nil {
		return 0
	}
	v, err := strconv.Atoi(a.str(i))
	if err != nil {
		a.err = errors.Wrapf(ErrInvalidArguments, "field %d (%s) %q is not an integer", i+1, name, a.str(i))
	}
	return v
}

func (a *argReader) atof(i int, name string) float64 {
	if a.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(a.str(i), 64)
	if err != nil {
		a.err = errors.Wrapf(ErrInvalidArguments, "field %d (%s) %q is not a number", i+1, name, a.str(i))
	}
	return v
}

// ParseArgs decodes the comma delimited argument string of a host script.
// Field order per mode:
//
//	linear:      activation,polarity,spv,scanTime,start,end,step,totalMinutes
//	list:        activation,polarity,scanTime,[spv spv ...],[cv cv ...]
//	exponential: activation,polarity,spv,scanTime,start,end,step,expPercent,expIncrement,totalMinutes
//
// The result is not validated; call Validate or hand it to Engine.Run.
func ParseArgs(m Mode, s string) (Params, error) {
	want, ok := argCounts[m]
	if !ok {
		return Params{}, errors.Wrapf(ErrInvalidConfiguration, "unknown ramp mode %d", int(m))
	}
	fields := strings.Split(s, ",")
	if len(fields) != want {
		return Params{}, errors.Wrapf(ErrInvalidArguments, "%s ramp takes %d fields, got %d", m, want, len(fields))
	}
	a := &argReader{fields: fields}
	act, err := ParseActivation(a.str(0))
	if err != nil {
		return Params{}, err
	}
	pol, err := ParsePolarity(a.str(1))
	if err != nil {
		return Params{}, err
	}
	p := Params{Mode: m, Activation: act, Polarity: pol}

	switch m {
	case ExplicitList:
		p.ScanTime = a.atoi(2, "scan time")
		for _, f := range util.ParseBracketList(a.str(3)) {
			if a.err != nil {
				break
			}
			n, err := strconv.Atoi(f)
			if err != nil {
				a.err = errors.Wrapf(ErrInvalidArguments, "scans per voltage %q is not an integer", f)
			}
			p.ScanCounts = append(p.ScanCounts, n)
		}
		for _, f := range util.ParseBracketList(a.str(4)) {
			if a.err != nil {
				break
			}
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				a.err = errors.Wrapf(ErrInvalidArguments, "collision voltage %q is not a number", f)
			}
			p.Voltages = append(p.Voltages, v)
		}
	default:
		p.ScansPerVoltage = a.atoi(2, "scans per voltage")
		p.ScanTime = a.atoi(3, "scan time")
		p.StartVoltage = a.atof(4, "start voltage")
		p.EndVoltage = a.atof(5, "end voltage")
		p.StepVoltage = a.atof(6, "step voltage")
		if m == Exponential {
			p.ExpOnsetPercent = a.atof(7, "exponential %")
			p.ExpIncrement = a.atof(8, "exponential increment")
			p.AcquisitionMinutes = a.atof(9, "total acquisition time")
		} else {
			p.AcquisitionMinutes = a.atof(7, "total acquisition time")
		}
	}
	if a.err != nil {
		return Params{}, a.err
	}
	return p, nil
}

// Args encodes p as the argument string of its host script, the inverse of ParseArgs
func (p Params) Args() string {
	f := util.FormatSetting
	fields := []string{p.Activation.String(), p.Polarity.String()}
	switch p.Mode {
	case ExplicitList:
		fields = append(fields,
			strconv.Itoa(p.ScanTime),
			"["+util.IntSliceToDelimited(p.ScanCounts, " ")+"]",
			"["+util.FloatSliceToDelimited(p.Voltages, " ")+"]")
	default:
		fields = append(fields,
			strconv.Itoa(p.ScansPerVoltage),
			strconv.Itoa(p.ScanTime),
			f(p.StartVoltage), f(p.EndVoltage), f(p.StepVoltage))
		if p.Mode == Exponential {
			fields = append(fields, f(p.ExpOnsetPercent), f(p.ExpIncrement))
		}
		fields = append(fields, f(p.AcquisitionMinutes))
	}
	return strings.Join(fields, ",")
}
