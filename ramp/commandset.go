package ramp

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/origami-ms/wrensramp/util"
)

// host command vocabulary
const (
	// CmdEnableSyncWrite allows the property banks to be used
	CmdEnableSyncWrite = "enableSyncWriteV"

	// CmdInitPropertyArrays clears the property banks
	CmdInitPropertyArrays = "initPropertyArraysV"

	// StartScanFunction is the repeating host function that drives the banks
	StartScanFunction = "WrensStartScan"

	// BankFunction is the function StartScanFunction invokes every scan
	BankFunction = "writePropertyBankV"

	// SettingSourceBias is the trap bias setting
	SettingSourceBias = "SOURCE_BIAS_SETTING"

	// SettingConeVoltage is the sample cone voltage setting
	SettingConeVoltage = "SAMPLE_CONE_VOLTAGE_SETTING"

	bank = 0

	stopFlowMagnitude = 20
)

// AddProp formats an addPropV command queuing value for setting in the given bank
func AddProp(bank int, setting, value string, isCommand bool) string {
	return fmt.Sprintf("addPropV,%d,%s,%s,%t", bank, setting, value, isCommand)
}

// SwitchCount formats a setSwitchCountV command holding the bank for count scans
func SwitchCount(bank, count int) string {
	return fmt.Sprintf("setSwitchCountV,%d,%d", bank, count)
}

type activationConsts struct {
	setting        string
	resetMagnitude float64
}

var activationTable = map[Activation]activationConsts{
	Trap: {setting: SettingSourceBias, resetMagnitude: 4},
	Cone: {setting: SettingConeVoltage, resetMagnitude: 30},
}

// CommandSet is the set of commands bound to one (activation, polarity) pair.
// It is constant for a run.
type CommandSet struct {
	Activation Activation
	Polarity   Polarity

	// StartStop stops the ion flow; it is issued before and after the ramp
	StartStop string

	// Reset returns the setting to its resting value
	Reset string

	// Readback is the setting name passed to ReadSetting
	Readback string
}

// Apply returns the command applying voltage v.  Negative polarity
// writes " -<v>", space included, which is what the host parser accepts.
func (cs CommandSet) Apply(v float64) string {
	value := util.FormatSetting(v)
	if cs.Polarity == Negative {
		value = " -" + value
	}
	return AddProp(bank, cs.Readback, value, false)
}

// ResolveCommandSet selects the command set for an activation type and ion polarity
func ResolveCommandSet(a Activation, p Polarity) (CommandSet, error) {
	consts, ok := activationTable[a]
	if !ok {
		return CommandSet{}, errors.Wrapf(ErrInvalidConfiguration, "activation type %q, make sure you either type in TRAP or CONE", a)
	}
	var stop, reset float64
	switch p {
	case Positive:
		stop, reset = -stopFlowMagnitude, consts.resetMagnitude
	case Negative:
		stop, reset = stopFlowMagnitude, -consts.resetMagnitude
	default:
		return CommandSet{}, errors.Wrapf(ErrInvalidConfiguration, "ion polarity %q, make sure you either type in POSITIVE or NEGATIVE", p)
	}
	return CommandSet{
		Activation: a,
		Polarity:   p,
		StartStop:  AddProp(bank, consts.setting, util.FormatSetting(stop), false),
		Reset:      AddProp(bank, consts.setting, util.FormatSetting(reset), false),
		Readback:   consts.setting,
	}, nil
}
